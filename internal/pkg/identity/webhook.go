package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const DefaultWebhookTolerance = 5 * time.Minute

var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookHeaders are the delivery headers of a signed identity webhook.
type WebhookHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

// HeaderGetter reads a request header by name.
type HeaderGetter func(name string) string

// ReadWebhookHeaders accepts both the svix-* and webhook-* header names.
func ReadWebhookHeaders(get HeaderGetter) WebhookHeaders {
	pick := func(primary, alias string) string {
		if v := strings.TrimSpace(get(primary)); v != "" {
			return v
		}
		return strings.TrimSpace(get(alias))
	}
	return WebhookHeaders{
		ID:        pick("svix-id", "webhook-id"),
		Timestamp: pick("svix-timestamp", "webhook-timestamp"),
		Signature: pick("svix-signature", "webhook-signature"),
	}
}

// WebhookVerifier checks HMAC-SHA256 signatures of identity webhooks.
type WebhookVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier accepts the whsec_-prefixed base64 secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(secret), "whsec_")
	if raw == "" {
		return nil, errors.New("webhook secret is empty")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.New("webhook secret is not valid base64")
	}
	return &WebhookVerifier{key: key, tolerance: DefaultWebhookTolerance, now: time.Now}, nil
}

// Verify authenticates payload for the given headers.
func (v *WebhookVerifier) Verify(payload []byte, h WebhookHeaders) error {
	if h.ID == "" || h.Timestamp == "" || h.Signature == "" {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	sent := time.Unix(ts, 0)
	now := v.now()
	if now.Sub(sent) > v.tolerance || sent.Sub(now) > v.tolerance {
		return ErrInvalidSignature
	}

	expected := v.sign(h.ID, h.Timestamp, payload)
	for _, entry := range strings.Fields(h.Signature) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign produces a signature header value for payload. Used by tests and local
// tooling that replay deliveries.
func (v *WebhookVerifier) Sign(id string, at time.Time, payload []byte) WebhookHeaders {
	ts := strconv.FormatInt(at.Unix(), 10)
	sig := base64.StdEncoding.EncodeToString(v.sign(id, ts, payload))
	return WebhookHeaders{ID: id, Timestamp: ts, Signature: "v1," + sig}
}

func (v *WebhookVerifier) sign(id, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
