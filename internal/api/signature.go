package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// HeaderHmacSHA256 carries the base64 HMAC-SHA256 of the raw request body.
const HeaderHmacSHA256 = "X-Shopify-Hmac-Sha256"

var (
	// ErrRawBodyUnavailable means the exact bytes that were signed could not be obtained.
	ErrRawBodyUnavailable = errors.New("raw request body unavailable")
	// ErrSignatureMismatch means the delivery is not authentic.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	// ErrSecretNotConfigured rejects every delivery until a shared secret is set.
	ErrSecretNotConfigured = fmt.Errorf("%w: webhook secret not configured", ErrSignatureMismatch)
)

// VerifySignature checks header against the HMAC-SHA256 of body keyed with secret.
// body must be the unmodified bytes read off the wire.
func VerifySignature(secret string, body []byte, header string) error {
	if len(body) == 0 {
		return ErrRawBodyUnavailable
	}
	if secret == "" {
		return ErrSecretNotConfigured
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: missing %s header", ErrSignatureMismatch, HeaderHmacSHA256)
	}
	provided, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return fmt.Errorf("%w: header is not base64", ErrSignatureMismatch)
	}
	if !hmac.Equal(provided, ComputeSignature(secret, body)) {
		return ErrSignatureMismatch
	}
	return nil
}

// ComputeSignature returns the raw HMAC-SHA256 digest of body.
func ComputeSignature(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignBody returns the header value Shopify would send for body.
func SignBody(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(ComputeSignature(secret, body))
}
