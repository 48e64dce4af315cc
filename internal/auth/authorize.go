package auth

import "github.com/hitoshi/blogman/internal/model"

// AuthorizeArticleAuthor は記事の作成者と現在の主体名が一致するかを検証する。
// 一致しない場合はNOT_AUTHORIZEDエラーを返す。記事の更新・削除の前に呼び出す。
func AuthorizeArticleAuthor(article *model.Article, principalName string) error {
	if article == nil || principalName == "" || article.Author != principalName {
		return model.NewNotAuthorizedError()
	}
	return nil
}
