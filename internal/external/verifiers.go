package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dodolink/internal/types"
)

// Standard Webhooks header names. Go's http.Header canonicalizes on Get, so
// the lowercase wire form and any cased variant both resolve.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
	HeaderWebhookSignature = "webhook-signature"
)

// secretPrefix is stripped from the shared secret before base64 decoding.
const secretPrefix = "whsec_"

// defaultTimestampTolerance bounds the age of a delivery in either direction.
const defaultTimestampTolerance = 5 * time.Minute

// StandardWebhookVerifier implements the Standard Webhooks signature scheme:
// HMAC-SHA256 over "{id}.{timestamp}.{body}" with a base64-decoded shared
// secret. The signature header carries space-separated "v1,<base64>" entries;
// any single match passes.
type StandardWebhookVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// VerifierOption is a functional option for configuring a verifier.
type VerifierOption func(*StandardWebhookVerifier)

// WithTimestampTolerance overrides the allowed clock skew window.
func WithTimestampTolerance(d time.Duration) VerifierOption {
	return func(v *StandardWebhookVerifier) {
		v.tolerance = d
	}
}

// WithNowFunc overrides the clock. Intended for tests.
func WithNowFunc(now func() time.Time) VerifierOption {
	return func(v *StandardWebhookVerifier) {
		v.now = now
	}
}

// NewStandardWebhookVerifier builds a verifier from the shared secret.
// The secret may carry the "whsec_" prefix; the remainder must be valid
// base64. An empty or undecodable secret is a configuration fault and fails
// construction so startup can abort.
func NewStandardWebhookVerifier(secret string, opts ...VerifierOption) (*StandardWebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret must not be empty")
	}

	encoded := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("webhook secret is not valid base64: %w", err)
	}

	v := &StandardWebhookVerifier{
		key:       key,
		tolerance: defaultTimestampTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the delivery signature against the raw body bytes.
//
// Failure modes:
//   - ErrCodeSignatureMissing: any of the three headers is absent or empty.
//   - ErrCodeSignatureInvalid: malformed or out-of-tolerance timestamp, or
//     no signature entry matches.
//
// The returned errors carry no secret material; the webhook endpoint maps
// them all to its generic failure body.
func (v *StandardWebhookVerifier) Verify(body []byte, headers http.Header) error {
	msgID := headers.Get(HeaderWebhookID)
	timestamp := headers.Get(HeaderWebhookTimestamp)
	signature := headers.Get(HeaderWebhookSignature)

	if msgID == "" || timestamp == "" || signature == "" {
		return types.NewAppError(
			types.ErrCodeSignatureMissing,
			"missing webhook signature headers",
			nil,
		)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeSignatureInvalid,
			"webhook timestamp is not a unix epoch value",
			err,
		)
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return types.NewAppError(
			types.ErrCodeSignatureInvalid,
			"webhook timestamp outside tolerance window",
			nil,
		)
	}

	expected := v.sign(msgID, timestamp, body)

	// The header may list several versioned signatures (e.g. during secret
	// rotation). Any single v1 match authenticates the delivery.
	for _, entry := range strings.Fields(signature) {
		version, value, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		candidate, decodeErr := base64.StdEncoding.DecodeString(value)
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}

	return types.NewAppError(
		types.ErrCodeSignatureInvalid,
		"no webhook signature matched",
		nil,
	)
}

// Sign computes the "v1,<base64>" signature entry for the given delivery.
// Exposed so tests can produce valid deliveries.
func (v *StandardWebhookVerifier) Sign(msgID, timestamp string, body []byte) string {
	return "v1," + base64.StdEncoding.EncodeToString(v.sign(msgID, timestamp, body))
}

func (v *StandardWebhookVerifier) sign(msgID, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}
