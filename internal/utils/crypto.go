package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"github.com/google/uuid"
)

// NewClientID 生成客户端 ID：UUIDv4 去掉连字符后的小写十六进制串。
func NewClientID() string {
	return strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// RandAlphaNumeric 生成长度为 n 的随机字符串（字符集 [A-Za-z0-9]）。
func RandAlphaNumeric(n int) (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const mask = 63 // 0b111111，超出 alphabet 的下标直接丢弃以避免偏倚
	if n <= 0 {
		return "", nil
	}
	out := make([]byte, n)
	buf := make([]byte, n)
	i := 0
	for i < n {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b & mask)
			if idx < len(alphabet) {
				out[i] = alphabet[idx]
				i++
				if i >= n {
					break
				}
			}
		}
	}
	return string(out), nil
}

// DigestMatches 判断 body 的 SHA-256 摘要是否与 URI 片段一致。
// 片段可为 base64url（无填充，OIDC Core 6.2 约定）或十六进制（大小写不敏感）。
func DigestMatches(body []byte, fragment string) bool {
	sum := sha256.Sum256(body)
	b64 := base64.RawURLEncoding.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(b64), []byte(fragment)) == 1 {
		return true
	}
	hx := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(hx), []byte(strings.ToLower(fragment))) == 1
}
