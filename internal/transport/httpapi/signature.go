package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"paymonitor/internal/errs"
)

const signatureHeader = "X-Signature-256"

var errUnauthorized = errors.New("unauthorized")

// verifySignature rejects requests whose body is not signed with secret as
// "sha256=<hex hmac>". An empty secret disables the check.
func verifySignature(secret string) func(http.Handler) http.Handler {
	secret = strings.TrimSpace(secret)
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeError(w, r, badRequest("read body: %v", err))
				return
			}
			if err := validateSignature(secret, r.Header.Get(signatureHeader), payload); err != nil {
				writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: err.Error()})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))
			next.ServeHTTP(w, r)
		})
	}
}

func validateSignature(secret string, header string, payload []byte) error {
	signature := strings.TrimSpace(header)
	if signature == "" {
		return fmt.Errorf("%w: %s", errUnauthorized, "missing "+signatureHeader)
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) || !strings.EqualFold(signature[:len(prefix)], prefix) {
		return fmt.Errorf("%w: %s", errUnauthorized, "invalid "+signatureHeader+" format")
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(signature[len(prefix):]))
	if err != nil {
		return fmt.Errorf("%w: %s", errUnauthorized, "invalid "+signatureHeader+" digest")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(payload); err != nil {
		return errs.Wrap(err, "compute request signature")
	}
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return fmt.Errorf("%w: %s", errUnauthorized, "invalid "+signatureHeader)
	}
	return nil
}

// Sign returns the header value expected for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(secret)))
	_, _ = mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
