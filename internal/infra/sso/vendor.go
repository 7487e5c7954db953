package sso

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssso "github.com/aws/aws-sdk-go-v2/service/sso"
	"go.uber.org/zap"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/sso"
)

// SSOAPI is the slice of the AWS SSO portal API the vendor needs.
// *sso.Client satisfies it, and the list methods match the SDK's paginator
// client interfaces.
type SSOAPI interface {
	ListAccounts(ctx context.Context, params *awssso.ListAccountsInput, optFns ...func(*awssso.Options)) (*awssso.ListAccountsOutput, error)
	ListAccountRoles(ctx context.Context, params *awssso.ListAccountRolesInput, optFns ...func(*awssso.Options)) (*awssso.ListAccountRolesOutput, error)
	GetRoleCredentials(ctx context.Context, params *awssso.GetRoleCredentialsInput, optFns ...func(*awssso.Options)) (*awssso.GetRoleCredentialsOutput, error)
}

// SSOFactory builds a portal client for a region.
type SSOFactory func(ctx context.Context, region string) (SSOAPI, error)

func defaultSSOFactory(ctx context.Context, region string) (SSOAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return awssso.NewFromConfig(cfg), nil
}

// Vendor implements domain.CredentialVendor on top of a DeviceAuthClient's
// access token. Listing calls degrade to an empty slice on upstream failure
// (logged, not propagated) so a flaky portal doesn't break the UI; the
// credential exchange returns its error explicitly.
type Vendor struct {
	auth   *DeviceAuthClient
	log    *zap.SugaredLogger
	newSSO SSOFactory
}

// VendorOption configures a Vendor.
type VendorOption func(*Vendor)

// WithSSOFactory replaces the SDK client constructor.
func WithSSOFactory(f SSOFactory) VendorOption {
	return func(v *Vendor) { v.newSSO = f }
}

func NewVendor(auth *DeviceAuthClient, log *zap.SugaredLogger, opts ...VendorOption) *Vendor {
	v := &Vendor{auth: auth, log: log, newSSO: defaultSSOFactory}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ListAccounts implements domain.CredentialVendor, aggregating all pages.
func (v *Vendor) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	token, region, ok := v.auth.currentToken()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	client, err := v.newSSO(ctx, region)
	if err != nil {
		return nil, err
	}

	accounts := []domain.Account{}
	pager := awssso.NewListAccountsPaginator(client, &awssso.ListAccountsInput{
		AccessToken: aws.String(token),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			v.log.Warnw("list sso accounts failed", "error", err)
			return []domain.Account{}, nil
		}
		for _, a := range page.AccountList {
			accounts = append(accounts, domain.Account{
				ID:    aws.ToString(a.AccountId),
				Name:  aws.ToString(a.AccountName),
				Email: aws.ToString(a.EmailAddress),
			})
		}
	}
	return accounts, nil
}

// ListAccountRoles implements domain.CredentialVendor, scoped to one account.
func (v *Vendor) ListAccountRoles(ctx context.Context, accountID string) ([]domain.Role, error) {
	token, region, ok := v.auth.currentToken()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	client, err := v.newSSO(ctx, region)
	if err != nil {
		return nil, err
	}

	roles := []domain.Role{}
	pager := awssso.NewListAccountRolesPaginator(client, &awssso.ListAccountRolesInput{
		AccessToken: aws.String(token),
		AccountId:   aws.String(accountID),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			v.log.Warnw("list sso account roles failed", "account_id", accountID, "error", err)
			return []domain.Role{}, nil
		}
		for _, r := range page.RoleList {
			roles = append(roles, domain.Role{
				Name:      aws.ToString(r.RoleName),
				AccountID: aws.ToString(r.AccountId),
			})
		}
	}
	return roles, nil
}

// GetRoleCredentials implements domain.CredentialVendor.
func (v *Vendor) GetRoleCredentials(ctx context.Context, accountID, roleName string) (*domain.RoleCredential, error) {
	token, region, ok := v.auth.currentToken()
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	client, err := v.newSSO(ctx, region)
	if err != nil {
		return nil, err
	}

	out, err := client.GetRoleCredentials(ctx, &awssso.GetRoleCredentialsInput{
		AccessToken: aws.String(token),
		AccountId:   aws.String(accountID),
		RoleName:    aws.String(roleName),
	})
	if err != nil {
		return nil, fmt.Errorf("get role credentials: %w", err)
	}

	creds := out.RoleCredentials
	return &domain.RoleCredential{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		// the portal reports expiration as epoch milliseconds
		Expiration: time.UnixMilli(creds.Expiration),
	}, nil
}
