package sso

import "errors"

// ErrNoSession is returned by Poll when no device authorization is in
// progress or the OIDC client registration was discarded.
var ErrNoSession = errors.New("no device authorization in progress")

// ErrUnauthenticated gates credential-vendor calls made without a valid
// access token. No network call is attempted in that case.
var ErrUnauthenticated = errors.New("not authenticated")
