package external

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"dodolink/internal/types"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

const testSecretRaw = "dGVzdC1zZWNyZXQtYnl0ZXMtMTIzNDU2Nzg5MA==" // base64("test-secret-bytes-1234567890")

// newTestVerifier builds a verifier with a fixed clock.
func newTestVerifier(t *testing.T, secret string, now time.Time) *StandardWebhookVerifier {
	t.Helper()
	v, err := NewStandardWebhookVerifier(secret, WithNowFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to construct verifier: %v", err)
	}
	return v
}

// signedHeaders produces a valid header set for the given body.
func signedHeaders(v *StandardWebhookVerifier, msgID string, ts time.Time, body []byte) http.Header {
	h := http.Header{}
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	h.Set(HeaderWebhookID, msgID)
	h.Set(HeaderWebhookTimestamp, timestamp)
	h.Set(HeaderWebhookSignature, v.Sign(msgID, timestamp, body))
	return h
}

func assertCode(t *testing.T, err error, want types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != want {
		t.Errorf("expected code %s, got %s", want, appErr.Code)
	}
}

// ---------------------------------------------------------------------------
// Constructor
// ---------------------------------------------------------------------------

func TestNewStandardWebhookVerifier_EmptySecret(t *testing.T) {
	if _, err := NewStandardWebhookVerifier(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewStandardWebhookVerifier_InvalidBase64(t *testing.T) {
	if _, err := NewStandardWebhookVerifier("whsec_!!!not-base64!!!"); err == nil {
		t.Fatal("expected error for undecodable secret")
	}
}

func TestNewStandardWebhookVerifier_PrefixedAndBareSecretsAgree(t *testing.T) {
	now := time.Now()
	body := []byte(`{"type":"subscription.active"}`)

	bare := newTestVerifier(t, testSecretRaw, now)
	prefixed := newTestVerifier(t, "whsec_"+testSecretRaw, now)

	headers := signedHeaders(bare, "msg_1", now, body)
	if err := prefixed.Verify(body, headers); err != nil {
		t.Errorf("prefixed secret rejected a delivery signed with the bare secret: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

func TestVerify_RoundTrip(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{"type":"subscription.active","data":{"subscription_id":"sub_1"}}`)

	headers := signedHeaders(v, "msg_1", now, body)
	if err := v.Verify(body, headers); err != nil {
		t.Fatalf("expected valid signature to verify, got: %v", err)
	}
}

func TestVerify_BodyBitFlip(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{"type":"subscription.active"}`)

	headers := signedHeaders(v, "msg_1", now, body)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] ^= 0x01

	err := v.Verify(tampered, headers)
	if err == nil {
		t.Fatal("expected tampered body to fail verification")
	}
	assertCode(t, err, types.ErrCodeSignatureInvalid)
}

func TestVerify_MissingHeaders(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{}`)

	full := signedHeaders(v, "msg_1", now, body)

	for _, header := range []string{HeaderWebhookID, HeaderWebhookTimestamp, HeaderWebhookSignature} {
		t.Run(header, func(t *testing.T) {
			partial := full.Clone()
			partial.Del(header)

			err := v.Verify(body, partial)
			if err == nil {
				t.Fatal("expected missing header to fail verification")
			}
			assertCode(t, err, types.ErrCodeSignatureMissing)
		})
	}
}

func TestVerify_TimestampOutsideTolerance(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{}`)

	for name, skew := range map[string]time.Duration{
		"too old": -6 * time.Minute,
		"too new": 6 * time.Minute,
	} {
		t.Run(name, func(t *testing.T) {
			headers := signedHeaders(v, "msg_1", now.Add(skew), body)
			err := v.Verify(body, headers)
			if err == nil {
				t.Fatal("expected out-of-tolerance timestamp to fail")
			}
			assertCode(t, err, types.ErrCodeSignatureInvalid)
		})
	}
}

func TestVerify_TimestampWithinTolerance(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{}`)

	headers := signedHeaders(v, "msg_1", now.Add(-4*time.Minute), body)
	if err := v.Verify(body, headers); err != nil {
		t.Errorf("expected 4-minute-old delivery to verify, got: %v", err)
	}
}

func TestVerify_NonNumericTimestamp(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{}`)

	headers := signedHeaders(v, "msg_1", now, body)
	headers.Set(HeaderWebhookTimestamp, "not-a-number")

	err := v.Verify(body, headers)
	if err == nil {
		t.Fatal("expected non-numeric timestamp to fail")
	}
	assertCode(t, err, types.ErrCodeSignatureInvalid)
}

func TestVerify_MultipleSignatureEntries(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{"type":"payment.succeeded"}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)

	bogus := "v1," + base64.StdEncoding.EncodeToString([]byte("wrong signature bytes here!!"))
	valid := v.Sign("msg_1", timestamp, body)

	headers := http.Header{}
	headers.Set(HeaderWebhookID, "msg_1")
	headers.Set(HeaderWebhookTimestamp, timestamp)
	headers.Set(HeaderWebhookSignature, fmt.Sprintf("%s %s", bogus, valid))

	if err := v.Verify(body, headers); err != nil {
		t.Errorf("expected any-match semantics across entries, got: %v", err)
	}
}

func TestVerify_IgnoresUnknownVersionsAndMalformedEntries(t *testing.T) {
	now := time.Now()
	v := newTestVerifier(t, testSecretRaw, now)
	body := []byte(`{}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)

	headers := http.Header{}
	headers.Set(HeaderWebhookID, "msg_1")
	headers.Set(HeaderWebhookTimestamp, timestamp)
	headers.Set(HeaderWebhookSignature, "v2,abcd not-an-entry v1,%%%bad-base64")

	err := v.Verify(body, headers)
	if err == nil {
		t.Fatal("expected no matching entry to fail verification")
	}
	assertCode(t, err, types.ErrCodeSignatureInvalid)
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Now()
	signer := newTestVerifier(t, testSecretRaw, now)
	other := newTestVerifier(t, base64.StdEncoding.EncodeToString([]byte("a completely different key")), now)

	body := []byte(`{"type":"subscription.active"}`)
	headers := signedHeaders(signer, "msg_1", now, body)

	err := other.Verify(body, headers)
	if err == nil {
		t.Fatal("expected signature from another secret to fail")
	}
	assertCode(t, err, types.ErrCodeSignatureInvalid)
}

func TestVerify_InterfaceCompliance(t *testing.T) {
	var _ WebhookVerifier = (*StandardWebhookVerifier)(nil)
}
