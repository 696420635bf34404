// Package billing holds the domain services between the HTTP layer and the
// provider clients: webhook event normalization, subscription state
// reconciliation, and user-to-customer linking.
package billing

import (
	"encoding/json"
	"time"

	"dodolink/internal/types"
)

// eventTypeUnknown is recorded when the payload carries no usable type field.
const eventTypeUnknown = "unknown"

// NormalizedEvent is the structured view of a webhook delivery. Every field
// except EventType and Raw is best-effort: absent or malformed values come
// through as nil, never as an error.
type NormalizedEvent struct {
	EventType          string
	SubscriptionID     *string
	ProductID          *string
	CustomerID         *string
	Status             *string
	BillingCurrency    *string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	NextBillingDate    *time.Time

	// Raw is the delivery body verbatim, preserved for the audit log.
	Raw types.RawPayload
}

// eventEnvelope mirrors the provider's webhook shape. Only the fields the
// service consumes are declared; everything else stays in Raw.
type eventEnvelope struct {
	Type string    `json:"type"`
	Data eventData `json:"data"`
}

type eventData struct {
	SubscriptionID string `json:"subscription_id"`
	ProductID      string `json:"product_id"`
	ProductCart    []struct {
		ProductID string `json:"product_id"`
	} `json:"product_cart"`
	Customer struct {
		CustomerID string `json:"customer_id"`
	} `json:"customer"`
	Status             string         `json:"status"`
	BillingCurrency    string         `json:"billing_currency"`
	Currency           string         `json:"currency"`
	CurrentPeriodStart types.FlexTime `json:"current_period_start"`
	CurrentPeriodEnd   types.FlexTime `json:"current_period_end"`
	NextBillingDate    types.FlexTime `json:"next_billing_date"`
}

// NormalizeEvent extracts the identifiers and subscription state the service
// cares about from a verified webhook payload. It is total: malformed JSON,
// missing fields, or unexpected field types degrade to defaults ("unknown"
// type, nil identifiers) rather than failing, so the audit log always gets a
// row for a verified delivery.
func NormalizeEvent(payload []byte) NormalizedEvent {
	ev := NormalizedEvent{
		EventType: eventTypeUnknown,
		Raw:       types.RawPayload(payload),
	}

	var envelope eventEnvelope
	// Decode errors are deliberately ignored: encoding/json fills every
	// well-typed field before reporting a mismatch, and whatever it filled
	// is still useful.
	_ = json.Unmarshal(payload, &envelope)

	if envelope.Type != "" {
		ev.EventType = envelope.Type
	}

	data := envelope.Data
	ev.SubscriptionID = optional(data.SubscriptionID)
	ev.CustomerID = optional(data.Customer.CustomerID)
	ev.Status = optional(data.Status)

	// Subscription events carry a top-level product_id; one-time payment
	// events carry a product_cart instead. First cart entry wins.
	switch {
	case data.ProductID != "":
		ev.ProductID = optional(data.ProductID)
	case len(data.ProductCart) > 0:
		ev.ProductID = optional(data.ProductCart[0].ProductID)
	}

	currency := data.BillingCurrency
	if currency == "" {
		currency = data.Currency
	}
	ev.BillingCurrency = optional(currency)

	ev.CurrentPeriodStart = data.CurrentPeriodStart.Ptr()
	ev.CurrentPeriodEnd = data.CurrentPeriodEnd.Ptr()
	ev.NextBillingDate = data.NextBillingDate.Ptr()

	return ev
}

// optional converts an empty string to nil and a non-empty one to a pointer.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
