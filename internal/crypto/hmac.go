// Package crypto provides HMAC request authentication and encrypted
// credential storage for the builder market-data API.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HMACAuth holds the credential triple required for authenticated requests
// against the builder API.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret
	Passphrase string // API passphrase
}

// Complete reports whether all three credential values are present. The
// gateway facade checks this before every live call and routes to the
// fallback source when it returns false; the signer itself is never invoked
// with an incomplete triple.
func (h *HMACAuth) Complete() bool {
	return h.Key != "" && h.Secret != "" && h.Passphrase != ""
}

// AccessHeaders returns the HTTP headers for an authenticated builder API
// request. The signature is HMAC-SHA256(secret, timestamp+METHOD+path+body)
// encoded as base64; the timestamp is milliseconds since epoch.
//
// Returned header keys:
//   - POLY-ACCESS-KEY
//   - POLY-ACCESS-SIGN
//   - POLY-ACCESS-TIMESTAMP
//   - POLY-ACCESS-PASSPHRASE
func (h *HMACAuth) AccessHeaders(method, path, body string) map[string]string {
	return h.AccessHeadersAt(method, path, body, time.Now().UnixMilli())
}

// AccessHeadersAt is like AccessHeaders but lets the caller supply the
// millisecond timestamp (useful for deterministic testing).
func (h *HMACAuth) AccessHeadersAt(method, path, body string, unixMilli int64) map[string]string {
	ts := strconv.FormatInt(unixMilli, 10)

	message := ts + strings.ToUpper(method) + path + body
	sig := hmacSHA256Base64([]byte(h.Secret), message)

	return map[string]string{
		"POLY-ACCESS-KEY":        h.Key,
		"POLY-ACCESS-SIGN":       sig,
		"POLY-ACCESS-TIMESTAMP":  ts,
		"POLY-ACCESS-PASSPHRASE": h.Passphrase,
	}
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
