// Package token mints and verifies the two JWT credential kinds used by
// the service: short-lived access tokens and longer-lived rotating refresh
// tokens. The two kinds are signed with distinct secrets so that a refresh
// token can never be replayed as an access token.
//
// The codec is pure: issuing and parsing are functions of the input, the
// configured secrets, and the clock. All family/blacklist state lives in
// the store layer.
package token
