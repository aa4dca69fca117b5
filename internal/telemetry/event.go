// Package telemetry emits auth events to Kafka for downstream analysis. All
// emission is best-effort; a broker outage never fails an auth flow.
package telemetry

import "time"

// Event types emitted by the auth flows.
const (
	EventUserRegistered = "user_registered"
	EventEmailVerified  = "email_verified"
	EventLoginFailed    = "login_failed"
	EventLoginSucceeded = "login_succeeded"
	EventOTPIssued      = "otp_issued"
	EventOTPBlocked     = "otp_blocked"
	EventTokenRefreshed = "token_refreshed"
	EventTokenRevoked   = "token_revoked"
	EventSessionRevoked = "session_revoked"
	EventLogout         = "logout"
	EventJanitorSweep   = "janitor_sweep"
)

// Event is one auth event on the wire (JSON-encoded in Kafka messages).
type Event struct {
	Type   string         `json:"type"`
	UserID string         `json:"user_id,omitempty"`
	At     time.Time      `json:"at"`
	Detail map[string]any `json:"detail,omitempty"`
}
