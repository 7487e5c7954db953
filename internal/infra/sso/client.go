// Package sso implements the browser-less AWS SSO login: the OAuth 2.0
// device-authorization grant against the SSO OIDC service, and the exchange
// of the resulting access token for short-lived role credentials.
package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	oidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cloud-screener/internal/catalog"
	domain "github.com/bryanwahyu/cloud-screener/internal/domain/sso"
)

const (
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"
	// DefaultRegion is the fallback when nothing in the start URL hints at
	// a region. AWS SSO portals on awsapps.com default to us-east-1.
	DefaultRegion = "us-east-1"
)

// OIDCClient is the slice of the SSO OIDC API the device flow needs.
// *ssooidc.Client satisfies it; tests plug in fakes.
type OIDCClient interface {
	RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error)
	StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error)
	CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error)
}

// OIDCFactory builds an OIDC client for a region. Split out so tests can
// inject fakes and so a region change rebuilds the client.
type OIDCFactory func(ctx context.Context, region string) (OIDCClient, error)

func defaultOIDCFactory(ctx context.Context, region string) (OIDCClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssooidc.NewFromConfig(cfg), nil
}

// DeviceAuthClient owns one device-authorization session. At most one
// session is live per instance; StartAuthorization discards the previous
// one, and a region change invalidates the registered OIDC client.
type DeviceAuthClient struct {
	clientName string
	log        *zap.SugaredLogger
	newOIDC    OIDCFactory
	now        func() time.Time

	mu sync.Mutex

	oidc   OIDCClient
	region string

	// registered public OIDC client; the secret has its own expiry
	// independent of the device session.
	clientID           string
	clientSecret       string
	clientSecretExpiry time.Time

	// live device session
	deviceCode    string
	sessionExpiry time.Time
	state         domain.SessionState

	token *domain.AccessToken
}

// Option configures a DeviceAuthClient.
type Option func(*DeviceAuthClient)

// WithOIDCFactory replaces the SDK client constructor.
func WithOIDCFactory(f OIDCFactory) Option {
	return func(c *DeviceAuthClient) { c.newOIDC = f }
}

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(c *DeviceAuthClient) { c.now = now }
}

// NewDeviceAuthClient builds an idle client. clientName is what shows up in
// the SSO console when the user approves the device.
func NewDeviceAuthClient(clientName string, log *zap.SugaredLogger, opts ...Option) *DeviceAuthClient {
	c := &DeviceAuthClient{
		clientName: clientName,
		log:        log,
		newOIDC:    defaultOIDCFactory,
		now:        time.Now,
		state:      domain.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeStartURL strips trailing slashes and fragments and makes sure the
// URL addresses the portal's /start path.
func NormalizeStartURL(startURL string) string {
	url := strings.TrimSpace(startURL)
	url = strings.TrimRight(url, "/")
	if i := strings.Index(url, "/start#"); i >= 0 {
		url = url[:i+len("/start")]
	} else if !strings.Contains(url, "/start") {
		url += "/start"
	}
	return url
}

// InferRegion guesses the SSO region from the start URL by looking for the
// longest known region identifier in it. Best effort only; DefaultRegion is
// returned when nothing matches.
func InferRegion(startURL string) string {
	lower := strings.ToLower(startURL)
	for _, id := range catalog.RegionIDs() {
		if strings.Contains(lower, id) {
			return id
		}
	}
	return DefaultRegion
}

// StartAuthorization implements domain.Authenticator.
func (c *DeviceAuthClient) StartAuthorization(ctx context.Context, startURL, region string) (*domain.DeviceAuthorization, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	normalized := NormalizeStartURL(startURL)
	if region == "" {
		region = InferRegion(startURL)
	}

	// A region change invalidates both the cached client and the
	// registration; registration is also region-scoped on the provider side.
	if c.region != region {
		c.oidc = nil
		c.clientID = ""
		c.clientSecret = ""
		c.region = region
	}

	if c.oidc == nil {
		oidc, err := c.newOIDC(ctx, region)
		if err != nil {
			return nil, err
		}
		c.oidc = oidc
	}

	if c.clientID == "" || !c.now().Before(c.clientSecretExpiry) {
		out, err := c.oidc.RegisterClient(ctx, &ssooidc.RegisterClientInput{
			ClientName: aws.String(c.clientName),
			ClientType: aws.String("public"),
		})
		if err != nil {
			return nil, fmt.Errorf("register oidc client: %w", err)
		}
		c.clientID = aws.ToString(out.ClientId)
		c.clientSecret = aws.ToString(out.ClientSecret)
		c.clientSecretExpiry = time.Unix(out.ClientSecretExpiresAt, 0)
		c.log.Infow("registered sso oidc client", "region", region)
	}

	out, err := c.oidc.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     aws.String(c.clientID),
		ClientSecret: aws.String(c.clientSecret),
		StartUrl:     aws.String(normalized),
	})
	if err != nil {
		return nil, fmt.Errorf("start device authorization: %w", err)
	}

	// Discard any prior session; only one device code is live at a time.
	c.deviceCode = aws.ToString(out.DeviceCode)
	c.sessionExpiry = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	c.state = domain.StateAwaitingUser

	return &domain.DeviceAuthorization{
		UserCode:                aws.ToString(out.UserCode),
		VerificationURI:         aws.ToString(out.VerificationUri),
		VerificationURIComplete: aws.ToString(out.VerificationUriComplete),
		ExpiresIn:               out.ExpiresIn,
		Interval:                out.Interval,
		Region:                  region,
	}, nil
}

// Poll implements domain.Authenticator. One token-endpoint exchange per
// call; the retry cadence is the caller's job.
func (c *DeviceAuthClient) Poll(ctx context.Context) (*domain.PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deviceCode == "" || c.clientID == "" || c.oidc == nil {
		return nil, domain.ErrNoSession
	}
	if !c.now().Before(c.sessionExpiry) {
		c.clearSessionLocked()
		return &domain.PollResult{
			Outcome: domain.OutcomeExpired,
			Message: "Authorization expired, please start again",
		}, nil
	}

	out, err := c.oidc.CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(c.clientID),
		ClientSecret: aws.String(c.clientSecret),
		GrantType:    aws.String(deviceGrantType),
		DeviceCode:   aws.String(c.deviceCode),
	})
	if err != nil {
		return c.pollOutcomeLocked(err), nil
	}

	c.token = &domain.AccessToken{
		Token:     aws.ToString(out.AccessToken),
		ExpiresAt: c.now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	c.state = domain.StateAuthorized
	c.log.Infow("sso device authorization completed", "region", c.region)

	return &domain.PollResult{
		Outcome:     domain.OutcomeSuccess,
		AccessToken: c.token.Token,
		ExpiresIn:   out.ExpiresIn,
	}, nil
}

// pollOutcomeLocked maps the provider's typed exceptions onto the outcome
// enum. Pending and slow-down leave the session untouched; expiry and
// denial clear it so the next Poll reports ErrNoSession.
func (c *DeviceAuthClient) pollOutcomeLocked(err error) *domain.PollResult {
	var (
		pending  *oidctypes.AuthorizationPendingException
		slowDown *oidctypes.SlowDownException
		expired  *oidctypes.ExpiredTokenException
		denied   *oidctypes.AccessDeniedException
	)
	switch {
	case errors.As(err, &pending):
		return &domain.PollResult{
			Outcome: domain.OutcomePending,
			Message: "Waiting for user to complete authorization",
		}
	case errors.As(err, &slowDown):
		return &domain.PollResult{
			Outcome: domain.OutcomeSlowDown,
			Message: "Polling too fast, slow down",
		}
	case errors.As(err, &expired):
		c.clearSessionLocked()
		return &domain.PollResult{
			Outcome: domain.OutcomeExpired,
			Message: "Authorization expired, please start again",
		}
	case errors.As(err, &denied):
		c.clearSessionLocked()
		return &domain.PollResult{
			Outcome: domain.OutcomeDenied,
			Message: "Access denied by user",
		}
	default:
		// Unexpected upstream failure: session stays as-is so the caller
		// may retry.
		c.log.Warnw("sso token poll failed", "error", err)
		return &domain.PollResult{
			Outcome: domain.OutcomeError,
			Message: err.Error(),
		}
	}
}

func (c *DeviceAuthClient) clearSessionLocked() {
	c.deviceCode = ""
	c.sessionExpiry = time.Time{}
	c.state = domain.StateIdle
}

// IsAuthenticated implements domain.Authenticator.
func (c *DeviceAuthClient) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil && c.token.Valid(c.now())
}

// TokenExpiry implements domain.Authenticator.
func (c *DeviceAuthClient) TokenExpiry() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid(c.now()) {
		return time.Time{}, false
	}
	return c.token.ExpiresAt, true
}

// Reset implements domain.Authenticator: back to Idle, everything dropped.
func (c *DeviceAuthClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oidc = nil
	c.region = ""
	c.clientID = ""
	c.clientSecret = ""
	c.clientSecretExpiry = time.Time{}
	c.token = nil
	c.clearSessionLocked()
}

// currentToken hands the vendor the token and region under the same lock the
// flow mutates them.
func (c *DeviceAuthClient) currentToken() (token, region string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.Valid(c.now()) {
		return "", "", false
	}
	region = c.region
	if region == "" {
		region = DefaultRegion
	}
	return c.token.Token, region, true
}
