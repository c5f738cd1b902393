package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Header is the name of the signature header ZITADEL attaches to
// every action call.
const Header = "ZITADEL-Signature"

// Compute returns the hex-encoded HMAC-SHA256 of "{timestamp}.{rawBody}"
// under the given secret. Exported so callers (and tests) can sign
// payloads the same way ZITADEL does.
func Compute(rawBody []byte, timestamp string, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a "t=<timestamp>,v1=<hex signature>" header against the
// raw request body. It returns false for a missing or malformed header
// and compares MACs in constant time.
func Verify(rawBody []byte, header string, secret string) bool {
	timestamp, provided, ok := parseHeader(header)
	if !ok {
		return false
	}

	providedMAC, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	expected := hmac.New(sha256.New, []byte(secret))
	expected.Write([]byte(timestamp))
	expected.Write([]byte("."))
	expected.Write(rawBody)

	return hmac.Equal(providedMAC, expected.Sum(nil))
}

func parseHeader(header string) (timestamp string, sig string, ok bool) {
	if header == "" {
		return "", "", false
	}

	for _, elem := range strings.Split(header, ",") {
		elem = strings.TrimSpace(elem)
		switch {
		case strings.HasPrefix(elem, "t="):
			timestamp = strings.TrimPrefix(elem, "t=")
		case strings.HasPrefix(elem, "v1="):
			sig = strings.TrimPrefix(elem, "v1=")
		}
	}

	if timestamp == "" || sig == "" {
		return "", "", false
	}

	return timestamp, sig, true
}
