package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cookie: invalid cbor encode options: %v", err))
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cookie: invalid cbor decode options: %v", err))
	}
	return dm
}

// ErrSignatureMismatch は署名付きCookie値のHMACが一致しない場合のエラー。
var ErrSignatureMismatch = errors.New("cookie signature mismatch")

// DecodeError はCookie値が復号できない、または期待する型に一致しない場合のエラー。
type DecodeError struct {
	Name string // Cookie名（不明な場合は空）
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("failed to decode cookie value: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode cookie %q: %v", e.Name, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Serialize は任意の値をCBORでエンコードし、URLセーフなbase64文字列にする。
func Serialize(v any) (string, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize cookie value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Deserialize はCookie値をT型に復元する。Serializeの逆変換。
// base64やCBORとして不正な値、Tに存在しないフィールドを含む値は*DecodeErrorを返す。
func Deserialize[T any](c *http.Cookie) (T, error) {
	var v T
	if c == nil {
		return v, &DecodeError{Err: errors.New("cookie is nil")}
	}
	if err := decode(c.Value, &v); err != nil {
		return v, &DecodeError{Name: c.Name, Err: err}
	}
	return v, nil
}

func decode(s string, v any) error {
	if s == "" {
		return errors.New("empty value")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid base64: %w", err)
	}
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("invalid cbor: %w", err)
	}
	return nil
}

// Codec はT型の値とCookie値の相互変換を行う。
// net/httpの型に依存しないため、任意のHTTP処理面で利用できる。
// keyを設定した場合は "<payload>.<hmac>" 形式で署名する。
type Codec[T any] struct {
	key []byte
}

// NewCodec は署名なしのCodecを生成する。
func NewCodec[T any]() Codec[T] {
	return Codec[T]{}
}

// NewSignedCodec はHMAC-SHA256で署名するCodecを生成する。
func NewSignedCodec[T any](key []byte) Codec[T] {
	return Codec[T]{key: key}
}

// Encode は値をCookie値にエンコードする。
func (c Codec[T]) Encode(v T) (string, error) {
	payload, err := Serialize(v)
	if err != nil {
		return "", err
	}
	if len(c.key) == 0 {
		return payload, nil
	}
	return payload + "." + c.sign(payload), nil
}

// Decode はCookie値をT型に復元する。失敗時は*DecodeErrorを返す。
func (c Codec[T]) Decode(value string) (T, error) {
	var v T
	payload := value
	if len(c.key) > 0 {
		i := strings.LastIndexByte(value, '.')
		if i < 0 {
			return v, &DecodeError{Err: ErrSignatureMismatch}
		}
		payload = value[:i]
		if !hmac.Equal([]byte(value[i+1:]), []byte(c.sign(payload))) {
			return v, &DecodeError{Err: ErrSignatureMismatch}
		}
	}
	if err := decode(payload, &v); err != nil {
		return v, &DecodeError{Err: err}
	}
	return v, nil
}

// DecodeCookie はCookieを復元し、エラーにCookie名を付与する。
func (c Codec[T]) DecodeCookie(ck *http.Cookie) (T, error) {
	if ck == nil {
		var v T
		return v, &DecodeError{Err: errors.New("cookie is nil")}
	}
	v, err := c.Decode(ck.Value)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Name = ck.Name
		}
		return v, err
	}
	return v, nil
}

func (c Codec[T]) sign(payload string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// DeriveKey は共通シークレットから用途別の署名キーを導出する。
// 同じsecretでもlabelが異なれば別のキーになる。
func DeriveKey(secret []byte, label string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}
