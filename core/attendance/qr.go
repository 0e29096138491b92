package attendance

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrInvalidCredential  = errors.New("invalid attendance credential")
	ErrCredentialMismatch = errors.New("credential does not match the requesting student")
)

// Credential is the payload carried by a student's QR badge. Field keys are
// deliberately terse to keep the encoded QR small and cheap to scan.
type Credential struct {
	StudentID         string `json:"e"`
	InstitutionalCode string `json:"c"`
	DisplayName       string `json:"n"`
}

// EncodeCredential serializes a credential to its wire form: compact JSON in
// struct field order, base64 url-encoded without padding. Encoding the same
// credential always yields the same string.
func EncodeCredential(c Credential) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "encoding credential")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCredential parses a scanned wire-form credential. Any malformed
// input maps to ErrInvalidCredential; the raw decode error is not exposed
// to callers.
func DecodeCredential(s string) (Credential, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		// tolerate padded input from older badge generators
		if raw, err = base64.URLEncoding.DecodeString(s); err != nil {
			return Credential{}, ErrInvalidCredential
		}
	}
	var c Credential
	if err = json.Unmarshal(raw, &c); err != nil {
		return Credential{}, ErrInvalidCredential
	}
	if c.StudentID == "" || c.InstitutionalCode == "" {
		return Credential{}, ErrInvalidCredential
	}
	return c, nil
}

// CredentialPNG renders a credential as a QR code PNG of the given pixel size.
func CredentialPNG(c Credential, size int) ([]byte, error) {
	enc, err := EncodeCredential(c)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(enc, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "rendering credential QR")
	}
	return png, nil
}
