package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed event may be before it is
// rejected as a potential replay.
const DefaultSignatureTolerance = 5 * time.Minute

// ErrInvalidSignature means the event signature does not match the shared
// webhook secret. Fatal for the request; never retried by the ingestor.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature validates a Stripe-style signature header against the
// shared secret. The header carries a timestamp and one or more v1
// signatures: "t={unix},v1={hex}". The signed content is "{unix}.{payload}".
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	if age := time.Since(time.Unix(timestamp, 0)); age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := ComputeSignature(timestamp, payload, secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ComputeSignature computes the v1 HMAC-SHA256 signature over
// "{timestamp}.{payload}". Exported so tests and tooling can sign payloads.
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds the header value for a payload, primarily for tests.
func SignatureHeader(timestamp int64, payload []byte, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(timestamp, payload, secret))
}
