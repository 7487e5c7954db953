package sso

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	oidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/sso"
)

// fakeOIDC scripts the three OIDC calls the device flow makes.
type fakeOIDC struct {
	clientID      string
	registerCalls int
	tokenCalls    int

	tokenErr error
	tokenOut *ssooidc.CreateTokenOutput
}

func (f *fakeOIDC) RegisterClient(_ context.Context, _ *ssooidc.RegisterClientInput, _ ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	f.registerCalls++
	return &ssooidc.RegisterClientOutput{
		ClientId:              aws.String(f.clientID),
		ClientSecret:          aws.String("secret-" + f.clientID),
		ClientSecretExpiresAt: time.Now().Add(90 * 24 * time.Hour).Unix(),
	}, nil
}

func (f *fakeOIDC) StartDeviceAuthorization(_ context.Context, params *ssooidc.StartDeviceAuthorizationInput, _ ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error) {
	return &ssooidc.StartDeviceAuthorizationOutput{
		DeviceCode:              aws.String("device-code"),
		UserCode:                aws.String("ABCD-EFGH"),
		VerificationUri:         aws.String("https://device.sso.example/verify"),
		VerificationUriComplete: aws.String("https://device.sso.example/verify?user_code=ABCD-EFGH"),
		ExpiresIn:               600,
		Interval:                5,
	}, nil
}

func (f *fakeOIDC) CreateToken(_ context.Context, _ *ssooidc.CreateTokenInput, _ ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	if f.tokenOut != nil {
		return f.tokenOut, nil
	}
	return &ssooidc.CreateTokenOutput{
		AccessToken: aws.String("access-token"),
		ExpiresIn:   3600,
	}, nil
}

func newTestClient(t *testing.T, fake *fakeOIDC) *DeviceAuthClient {
	t.Helper()
	return NewDeviceAuthClient("TestClient", zaptest.NewLogger(t).Sugar(),
		WithOIDCFactory(func(_ context.Context, _ string) (OIDCClient, error) {
			return fake, nil
		}))
}

func TestNormalizeStartURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://d-123.awsapps.com/start", "https://d-123.awsapps.com/start"},
		{"https://d-123.awsapps.com/start/", "https://d-123.awsapps.com/start"},
		{"https://d-123.awsapps.com/start#/", "https://d-123.awsapps.com/start"},
		{"https://d-123.awsapps.com", "https://d-123.awsapps.com/start"},
		{"  https://d-123.awsapps.com/ ", "https://d-123.awsapps.com/start"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStartURL(tt.in), "input %q", tt.in)
	}
}

func TestInferRegion(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://mycompany.awsapps.com/start", DefaultRegion},
		{"https://portal.sso.eu-west-1.amazonaws.com/start", "eu-west-1"},
		{"https://portal.sso.AP-SOUTHEAST-1.amazonaws.com/start", "ap-southeast-1"},
		{"", DefaultRegion},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferRegion(tt.url), "url %q", tt.url)
	}
}

func TestPollWithoutSession(t *testing.T) {
	c := newTestClient(t, &fakeOIDC{clientID: "c1"})
	_, err := c.Poll(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestStartAuthorizationIssuesDeviceCode(t *testing.T) {
	fake := &fakeOIDC{clientID: "c1"}
	c := newTestClient(t, fake)

	auth, err := c.StartAuthorization(context.Background(), "https://d-123.awsapps.com", "")
	require.NoError(t, err)

	assert.Equal(t, "ABCD-EFGH", auth.UserCode)
	assert.Equal(t, "https://device.sso.example/verify", auth.VerificationURI)
	assert.Equal(t, int32(600), auth.ExpiresIn)
	assert.Equal(t, DefaultRegion, auth.Region)
	assert.Equal(t, 1, fake.registerCalls)
	assert.False(t, c.IsAuthenticated())
}

func TestStartAuthorizationReusesRegistration(t *testing.T) {
	fake := &fakeOIDC{clientID: "c1"}
	c := newTestClient(t, fake)

	ctx := context.Background()
	_, err := c.StartAuthorization(ctx, "https://d-123.awsapps.com", "us-east-1")
	require.NoError(t, err)
	_, err = c.StartAuthorization(ctx, "https://d-123.awsapps.com", "us-east-1")
	require.NoError(t, err)

	assert.Equal(t, 1, fake.registerCalls, "same region keeps the registered client")
}

func TestRegionChangeReRegisters(t *testing.T) {
	fake := &fakeOIDC{clientID: "c1"}
	c := newTestClient(t, fake)

	ctx := context.Background()
	_, err := c.StartAuthorization(ctx, "https://d-123.awsapps.com", "us-east-1")
	require.NoError(t, err)
	_, err = c.StartAuthorization(ctx, "https://d-123.awsapps.com", "eu-west-1")
	require.NoError(t, err)

	assert.Equal(t, 2, fake.registerCalls, "region change invalidates the registration")
}

func TestPollOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		tokenErr    error
		want        domain.Outcome
		sessionEnds bool
	}{
		{"pending", &oidctypes.AuthorizationPendingException{}, domain.OutcomePending, false},
		{"slow down", &oidctypes.SlowDownException{}, domain.OutcomeSlowDown, false},
		{"expired", &oidctypes.ExpiredTokenException{}, domain.OutcomeExpired, true},
		{"denied", &oidctypes.AccessDeniedException{}, domain.OutcomeDenied, true},
		{"unexpected", errors.New("throttled"), domain.OutcomeError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOIDC{clientID: "c1", tokenErr: tt.tokenErr}
			c := newTestClient(t, fake)
			ctx := context.Background()
			_, err := c.StartAuthorization(ctx, "https://d-123.awsapps.com", "")
			require.NoError(t, err)

			result, err := c.Poll(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Outcome)
			assert.False(t, c.IsAuthenticated())

			_, err = c.Poll(ctx)
			if tt.sessionEnds {
				assert.ErrorIs(t, err, domain.ErrNoSession, "session must be cleared")
			} else {
				assert.NoError(t, err, "session must survive for a retry")
			}
		})
	}
}

func TestPollSuccessStoresToken(t *testing.T) {
	fake := &fakeOIDC{clientID: "c1"}
	c := newTestClient(t, fake)
	ctx := context.Background()

	_, err := c.StartAuthorization(ctx, "https://d-123.awsapps.com", "")
	require.NoError(t, err)

	result, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "access-token", result.AccessToken)
	assert.Equal(t, int32(3600), result.ExpiresIn)

	assert.True(t, c.IsAuthenticated())
	expiry, ok := c.TokenExpiry()
	require.True(t, ok)
	assert.True(t, expiry.After(time.Now()))
}

func TestSessionExpiresLocally(t *testing.T) {
	fake := &fakeOIDC{clientID: "c1"}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewDeviceAuthClient("TestClient", zaptest.NewLogger(t).Sugar(),
		WithOIDCFactory(func(_ context.Context, _ string) (OIDCClient, error) {
			return fake, nil
		}),
		WithNow(func() time.Time { return now }))

	ctx := context.Background()
	_, err := c.StartAuthorization(ctx, "https://d-123.awsapps.com", "")
	require.NoError(t, err)

	now = now.Add(601 * time.Second)
	result, err := c.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExpired, result.Outcome)
	assert.Equal(t, 0, fake.tokenCalls, "expired session never hits the token endpoint")

	_, err = c.Poll(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestReset(t *testing.T) {
	fake := &fakeOIDC{clientID: "c1"}
	c := newTestClient(t, fake)
	ctx := context.Background()

	_, err := c.StartAuthorization(ctx, "https://d-123.awsapps.com", "")
	require.NoError(t, err)
	_, err = c.Poll(ctx)
	require.NoError(t, err)
	require.True(t, c.IsAuthenticated())

	c.Reset()
	assert.False(t, c.IsAuthenticated())
	_, err = c.Poll(ctx)
	assert.ErrorIs(t, err, domain.ErrNoSession)

	_, ok := c.TokenExpiry()
	assert.False(t, ok)
}

func TestFactoryErrorPropagates(t *testing.T) {
	c := NewDeviceAuthClient("TestClient", zaptest.NewLogger(t).Sugar(),
		WithOIDCFactory(func(_ context.Context, _ string) (OIDCClient, error) {
			return nil, fmt.Errorf("no credentials")
		}))
	_, err := c.StartAuthorization(context.Background(), "https://d-123.awsapps.com", "")
	assert.Error(t, err)
}
