package sso

import "time"

// SessionState represents the lifecycle of a device-authorization session.
// The session is owned by one client instance; starting a new authorization
// discards any prior session, and Expired/Denied outcomes reset it to Idle.
type SessionState string

const (
	// StateIdle means no device authorization is in progress.
	StateIdle SessionState = "idle"
	// StateAwaitingUser means the verification URI was issued and the user
	// has not completed approval yet.
	StateAwaitingUser SessionState = "awaiting_user"
	// StateAuthorized means the device code was exchanged for a token.
	StateAuthorized SessionState = "authorized"
)

// Outcome classifies one poll of the token endpoint. Pending, SlowDown,
// Expired and Denied are routine control-flow branches of the device grant,
// not failures.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeSlowDown Outcome = "slow_down"
	OutcomeSuccess  Outcome = "success"
	OutcomeExpired  Outcome = "expired"
	OutcomeDenied   Outcome = "denied"
	OutcomeError    Outcome = "error"
)

// DeviceAuthorization is what the caller needs to display so the user can
// approve the session in a browser.
type DeviceAuthorization struct {
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int32  `json:"expires_in"`
	Interval                int32  `json:"interval"`
	Region                  string `json:"region"`
}

// PollResult is the tagged result of one token poll. AccessToken and
// ExpiresIn are set only on OutcomeSuccess.
type PollResult struct {
	Outcome     Outcome `json:"status"`
	Message     string  `json:"message,omitempty"`
	AccessToken string  `json:"access_token,omitempty"`
	ExpiresIn   int32   `json:"expires_in,omitempty"`
}

// AccessToken proves the user completed the device flow. It lives in memory
// only and is never persisted.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at the given instant.
func (t AccessToken) Valid(now time.Time) bool {
	return t.Token != "" && now.Before(t.ExpiresAt)
}

// RoleCredential is a short-lived AWS access key triad for one account/role.
// It is held in memory for a single job launch and must never be logged or
// written to disk.
type RoleCredential struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Expiration      time.Time `json:"expiration"`
}

// Account describes one AWS account reachable through the SSO portal.
type Account struct {
	ID    string `json:"account_id"`
	Name  string `json:"account_name"`
	Email string `json:"email_address,omitempty"`
}

// Role describes one assumable role inside an account.
type Role struct {
	Name      string `json:"role_name"`
	AccountID string `json:"account_id"`
}
