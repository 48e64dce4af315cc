package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// NewOutboundClient はIdPとの通信（トークン交換・ユーザー情報取得）用のHTTPクライアントを生成する。
// 接続先はhttpsの443番ポートに限られ、プライベートIP・ループバック・リンクローカル・
// メタデータIPへの接続はDNS解決後のアドレスで拒否される。
func NewOutboundClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}
