// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// SessionCookieName is the HTTP cookie that carries the access token
// for browser clients.
const SessionCookieName = "gophauth_session"
