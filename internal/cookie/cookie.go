// Package cookie はCookieの追加・削除と、任意の値のCookie値へのシリアライズを提供する。
//
// シリアライズ形式はCBOR（決定的エンコーディング）をbase64url（パディングなし）で
// 符号化したもの。署名キーを持つCodecは末尾にHMAC-SHA256を付与し、改ざんを検出する。
package cookie

import (
	"net/http"
	"strings"
)

// Policy はデプロイ環境ごとのCookie属性を保持する。
// ゼロ値はローカル開発（http、ドメイン指定なし）向け。
type Policy struct {
	Secure bool
	Domain string
}

// Add は指定した名前・値・有効期間（秒）のCookieをレスポンスに設定する。
// Path=/、HttpOnly、SameSite=Laxで設定する。
func Add(w http.ResponseWriter, name, value string, maxAge int) {
	Policy{}.Add(w, name, value, maxAge)
}

// Delete はリクエストに同名のCookieが存在する場合のみ、
// 空値・Max-Age=0で再設定してクライアント側で失効させる。
// 存在しない場合は何もしない。
func Delete(r *http.Request, w http.ResponseWriter, name string) {
	Policy{}.Delete(r, w, name)
}

// Add はPolicyの属性でCookieを設定する。
// 同じレスポンスで既に同名のSet-Cookieが積まれている場合は置き換える。
func (p Policy) Add(w http.ResponseWriter, name, value string, maxAge int) {
	setCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Delete はPolicyの属性でCookieを失効させる。
func (p Policy) Delete(r *http.Request, w http.ResponseWriter, name string) {
	if r == nil {
		return
	}
	if _, err := r.Cookie(name); err != nil {
		return
	}
	// net/httpではMaxAge<0が "Max-Age=0" として出力される
	setCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   p.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setCookie はSet-Cookieヘッダーを1名前につき1つに保って追加する。
func setCookie(w http.ResponseWriter, c *http.Cookie) {
	if w == nil {
		return
	}
	line := c.String()
	if line == "" {
		return
	}

	h := w.Header()
	prefix := c.Name + "="
	existing := h.Values("Set-Cookie")
	kept := make([]string, 0, len(existing))
	for _, v := range existing {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	h.Add("Set-Cookie", line)
}
