// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は利用者が投稿した記事のタイトルと本文をサニタイズする。
// 本文はbluemondayの許可リストポリシーで安全なタグのみを残し、
// タイトルはタグを全て取り除いたプレーンテキストにする。
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は記事の入力値をサニタイズする。
type ContentSanitizer interface {
	// SanitizeContent は本文のHTMLから許可されていないタグ・属性を取り除く。
	// 同一入力に対して常に同一出力を返す。
	SanitizeContent(rawHTML string) string
	// SanitizeTitle はタイトルからタグを全て取り除き、前後の空白を詰める。
	SanitizeTitle(raw string) string
}

// articleSanitizer はContentSanitizerの実装。
// bluemondayのPolicyは構築後は読み取り専用なので、複数のgoroutineから同時に使える。
type articleSanitizer struct {
	content *bluemonday.Policy
	title   *bluemonday.Policy
}

// NewContentSanitizer は記事用のポリシーを構築する。
//   - 許可タグ: h2〜h4, p, br, hr, ul, ol, li, blockquote, pre, code, strong, em, a, img
//   - aのhref: http/https/mailto と記事内の相対パス
//   - imgのsrc: httpsのみ
func NewContentSanitizer() ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h2", "h3", "h4",
		"p", "br", "hr",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("alt").OnElements("img")
	p.AllowAttrs("src").Matching(httpsURL).OnElements("img")

	return &articleSanitizer{
		content: p,
		title:   bluemonday.StrictPolicy(),
	}
}

// SanitizeContent は本文をサニタイズする。
func (s *articleSanitizer) SanitizeContent(rawHTML string) string {
	return s.content.Sanitize(rawHTML)
}

// SanitizeTitle はタイトルをプレーンテキストにする。
func (s *articleSanitizer) SanitizeTitle(raw string) string {
	return strings.TrimSpace(s.title.Sanitize(raw))
}

// httpsURL はimgのsrcに許可するURLの形式。
var httpsURL = regexp.MustCompile(`^https://[^/\s]+`)
