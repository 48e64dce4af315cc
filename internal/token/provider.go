// Package token はユーザーに対するアクセストークン・リフレッシュトークン（JWT）の
// 発行と検証を提供する。
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/blogman/internal/model"
)

// 検証エラーの種別。呼び出し側はerrors.Isで判定する。
var (
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrMalformedToken   = errors.New("token is malformed")
	ErrInvalidToken     = errors.New("invalid token")
)

// Kind はトークンの用途。typクレームに入る。
type Kind string

const (
	// KindAccess はAPI呼び出しに使う短命なトークン。
	KindAccess Kind = "access"
	// KindRefresh はアクセストークンの再発行にだけ使うトークン。
	KindRefresh Kind = "refresh"
)

// Claims はトークンのペイロード。subにユーザーID、emailに主体名、typに用途を持つ。
type Claims struct {
	Email string `json:"email"`
	Kind  Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Expect はトークンの用途がkindであることを確認する。
// 用途が異なる場合はErrInvalidTokenを返す。
func (c *Claims) Expect(kind Kind) error {
	if c.Kind != kind {
		return fmt.Errorf("%w: token use is %q, want %q", ErrInvalidToken, c.Kind, kind)
	}
	return nil
}

// UserID はsubクレームをユーザーIDとして解釈する。
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return id, nil
}

// Principal はクレームから認証主体を組み立てる。
func (c *Claims) Principal() (model.Principal, error) {
	id, err := c.UserID()
	if err != nil {
		return model.Principal{}, err
	}
	return model.Principal{UserID: id, Email: c.Email}, nil
}

// NewClaims はuserに対して now から expiry 後に失効するkind用途のクレームを生成する。
// jtiは毎回ランダムに採番するため、同一秒内に発行しても異なるトークンになる。
func NewClaims(issuer string, user *model.User, kind Kind, now time.Time, expiry time.Duration) *Claims {
	return &Claims{
		Email: user.Email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.Subject(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.NewString(),
		},
	}
}

// Sign はクレームをHS256で署名する。
func Sign(claims *Claims, secret []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

// Verify は署名と有効期限を検証してクレームを返す。
// nowを時刻の基準にするため、テストでは任意の時刻で検証できる。
func Verify(tokenString string, secret []byte, issuer string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	t, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if !t.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, fmt.Errorf("%w: unknown token use %q", ErrInvalidToken, claims.Kind)
	}
	return claims, nil
}

// classify はjwtライブラリのエラーをこのパッケージのエラー種別に変換する。
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// Option はProviderの設定を変更する。
type Option func(*Provider)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// Provider はサーバーの秘密鍵でトークンを発行・検証する。
// 生成後は不変のため、複数のgoroutineから同時に利用できる。
type Provider struct {
	issuer string
	secret []byte
	now    func() time.Time
}

// NewProvider はProviderを生成する。
func NewProvider(issuer string, secret []byte, opts ...Option) *Provider {
	p := &Provider{
		issuer: issuer,
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GenerateToken はuserに対して現在時刻からexpiry後に失効するkind用途のトークンを発行する。
func (p *Provider) GenerateToken(user *model.User, kind Kind, expiry time.Duration) (string, error) {
	return Sign(NewClaims(p.issuer, user, kind, p.now(), expiry), p.secret)
}

// ParseToken はトークンを検証してクレームを返す。
func (p *Provider) ParseToken(tokenString string) (*Claims, error) {
	return Verify(tokenString, p.secret, p.issuer, p.now)
}

// ValidToken はトークンが有効かどうかを返す。
func (p *Provider) ValidToken(tokenString string) bool {
	_, err := p.ParseToken(tokenString)
	return err == nil
}

// Secret はCookie署名など派生用途のために秘密鍵のコピーを返す。
func (p *Provider) Secret() []byte {
	return append([]byte(nil), p.secret...)
}
