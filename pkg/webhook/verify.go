package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidSignature is returned by every Verify* function when the
// delivery's signature does not match the shared secret on file.
var ErrInvalidSignature = errors.New("webhook: invalid signature")

// VerifyGitHub checks the `X-Hub-Signature-256: sha256=<hex>` header
// against an HMAC-SHA256 of the raw body, the way the teacher's own
// outbound webhook dispatcher signs deliveries in reverse
// (crypto/hmac + sha256.New), per spec.md §6's GitHub row.
func VerifyGitHub(secret []byte, body []byte, header string) error {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return ErrInvalidSignature
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(want, sign(secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyGitLab does a constant-time compare of the `X-Gitlab-Token`
// header against the configured secret token.
func VerifyGitLab(secret string, header string) error {
	if subtle.ConstantTimeCompare([]byte(header), []byte(secret)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyCircleCI checks the `circleci-signature: v1=<hex>` header against
// an HMAC-SHA256 of the raw body.
func VerifyCircleCI(secret []byte, body []byte, header string) error {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "v1=") {
			continue
		}
		want, err := hex.DecodeString(strings.TrimPrefix(part, "v1="))
		if err != nil {
			continue
		}
		if hmac.Equal(want, sign(secret, body)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// VerifyJenkins accepts either an `X-Jenkins-Token` header or an
// `Authorization: Bearer <token>` header, constant-time compared against
// the configured secret.
func VerifyJenkins(secret, tokenHeader, authHeader string) error {
	if tokenHeader != "" {
		if subtle.ConstantTimeCompare([]byte(tokenHeader), []byte(secret)) == 1 {
			return nil
		}
	}
	if bearer, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		if subtle.ConstantTimeCompare([]byte(bearer), []byte(secret)) == 1 {
			return nil
		}
	}
	return ErrInvalidSignature
}

// VerifyAzureDevOps decodes `Authorization: Basic <base64(user:pass)>`
// and compares the password half against the configured secret.
func VerifyAzureDevOps(secret, authHeader string) error {
	encoded, ok := strings.CutPrefix(authHeader, "Basic ")
	if !ok {
		return ErrInvalidSignature
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidSignature
	}
	_, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(secret)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
