package utils

import (
	"crypto/rand"
	"strings"
	"time"

	exprand "golang.org/x/exp/rand"
)

func init() {
	exprand.Seed(uint64(time.Now().UnixNano()))
}

const codeCharset = "0123456789"

// GenerateVerificationCode returns a numeric one-time code of the given
// length. Each digit is drawn from a cryptographically secure source; bytes
// >= 250 are rejected so the modulo keeps digits uniform.
func GenerateVerificationCode(length int) (string, error) {
	code := make([]byte, 0, length)
	buf := make([]byte, 1)
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		if buf[0] >= 250 {
			continue
		}
		code = append(code, codeCharset[int(buf[0])%len(codeCharset)])
	}
	return string(code), nil
}

// GenerateRandomString returns a non-cryptographic random string. Used for
// development defaults only, never for verification codes.
func GenerateRandomString(limit int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, limit)
	for i := range result {
		result[i] = chars[exprand.Intn(len(chars))]
	}

	return string(result)
}

// SanitizeEmail normalizes an email address for lookup and storage.
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TruncateString shortens s to at most limit characters, cutting on a rune
// boundary so multi-byte text never ends in a broken sequence.
func TruncateString(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// BlurEmailAddress masks the local part of an address for log output.
func BlurEmailAddress(email string) string {
	at := strings.Index(email, "@")
	if at < 1 {
		return email
	}
	return email[:1] + "****" + email[at:]
}
