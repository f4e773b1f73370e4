package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/smsflow/smsflow/pkg/apperr"
)

const signaturePrefix = "sha256="

// Sign returns the header value for body, used by tests and tooling
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 signature in the form sha256=<hex>
func VerifySignature(secret string, header string, body []byte) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return apperr.New(apperr.CodeMissingSignature, "missing webhook signature")
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return apperr.New(apperr.CodeInvalidSignature, "unsupported signature scheme")
	}

	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return apperr.New(apperr.CodeInvalidSignature, "malformed signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if secret == "" || !hmac.Equal(got, mac.Sum(nil)) {
		return apperr.New(apperr.CodeInvalidSignature, "signature mismatch")
	}
	return nil
}
