package sso

import (
	"context"
	"time"
)

// Authenticator drives the OAuth device-authorization flow. Polling is
// caller-driven: the implementation never sleeps, it only reports whether
// the caller should retry and how fast.
type Authenticator interface {
	// StartAuthorization normalizes the start URL, registers an OIDC client
	// if needed and issues a device authorization. Any prior session is
	// discarded. region may be empty, in which case it is inferred from the
	// URL.
	StartAuthorization(ctx context.Context, startURL, region string) (*DeviceAuthorization, error)

	// Poll exchanges the device code for a token once. Returns ErrNoSession
	// when nothing is in progress.
	Poll(ctx context.Context) (*PollResult, error)

	// IsAuthenticated reports whether a non-expired access token is held.
	IsAuthenticated() bool

	// TokenExpiry returns the access token expiry, if authenticated.
	TokenExpiry() (time.Time, bool)

	// Reset discards the client registration, session and token.
	Reset()
}

// CredentialVendor exchanges an SSO access token for account listings and
// short-lived role credentials.
type CredentialVendor interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListAccountRoles(ctx context.Context, accountID string) ([]Role, error)
	GetRoleCredentials(ctx context.Context, accountID, roleName string) (*RoleCredential, error)
}
