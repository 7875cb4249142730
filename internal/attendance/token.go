package attendance

import (
	"crypto/rand"
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const codeBytes = 16

// NewCode returns an unpredictable token string. 16 bytes of crypto/rand
// encoded as base64url; not guessable, not enumerable.
func NewCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// QRImage renders a token code as a base64-encoded PNG for display.
func QRImage(code string, size int) (string, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
