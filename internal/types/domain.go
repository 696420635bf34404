package types

import "time"

// UserAccount is the identity-provider view of a user. The id is assigned by
// the provider at registration and is immutable; profile fields live in the
// local user_profiles table.
type UserAccount struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the token bundle returned by the identity provider on sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// Profile is a row in user_profiles, keyed by the identity-provider user id.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerMapping links a local user id 1:1 to a payments-provider customer id.
// Created once, never updated. Absence means "not yet linked", not an error.
type CustomerMapping struct {
	UserID         string    `json:"id"`
	DodoCustomerID string    `json:"dodo_customer_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Subscription is the locally persisted subscription state, keyed by the
// provider's subscription id. Written exclusively via full-replace upsert;
// last write wins, no version tracking.
type Subscription struct {
	DodoSubscriptionID string     `json:"dodo_subscription_id"`
	DodoCustomerID     string     `json:"dodo_customer_id"`
	ProductID          string     `json:"product_id"`
	Status             string     `json:"status"`
	BillingCurrency    *string    `json:"billing_currency"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	NextBillingDate    *time.Time `json:"next_billing_date"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SubscriptionEvent is one row of the append-only webhook audit log.
// The extracted ids are best-effort and nullable; the raw payload is stored
// verbatim for forensics and replay. Duplicate deliveries produce duplicate
// rows by design.
type SubscriptionEvent struct {
	ID             int64      `json:"id"`
	EventType      string     `json:"event_type"`
	Payload        RawPayload `json:"payload"`
	SubscriptionID *string    `json:"subscription_id"`
	ProductID      *string    `json:"product_id"`
	CustomerID     *string    `json:"customer_id"`
	ReceivedAt     time.Time  `json:"received_at"`
}

// LinkStatus describes the outcome of the customer-link enrichment during
// registration. Registration succeeds regardless; callers use this to detect
// incomplete state that needs external reconciliation.
type LinkStatus string

const (
	// LinkStatusLinked means the provider customer exists and the mapping
	// row was written (or already existed).
	LinkStatusLinked LinkStatus = "linked"
	// LinkStatusProviderFailed means the provider customer-create call
	// failed; no mapping row was written.
	LinkStatusProviderFailed LinkStatus = "provider_failed"
	// LinkStatusMappingFailed means the provider customer was created but
	// the local mapping write failed. The customer id is still returned.
	LinkStatusMappingFailed LinkStatus = "mapping_failed"
	// LinkStatusSkipped means linking was not attempted.
	LinkStatusSkipped LinkStatus = "skipped"
)

// LinkResult is the structured partial-success outcome of EnsureLink.
type LinkResult struct {
	Status         LinkStatus `json:"status"`
	DodoCustomerID string     `json:"dodo_customer_id,omitempty"`
}
