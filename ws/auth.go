// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ws

import (
	"fmt"

	"github.com/nats-io/jwt/v2"
	"github.com/nats-io/nkeys"
)

// NkeyAuthenticator restores the handshake authentication path the
// teacher's websocket transport carried (srvWebsocket.users/nkeys,
// ws.cookieJwt) and that spec.md's distillation dropped. A client
// presents a signed JWT in a cookie; NkeyAuthenticator verifies the JWT
// was issued by one of TrustedKeys and, if Audience is set, that the
// JWT's audience matches it.
//
// This is an optional, pluggable replacement for the teacher's
// account/user-store-specific logic: it verifies a bearer credential,
// nothing more, so this module doesn't have to know what a NATS account
// or user is.
type NkeyAuthenticator struct {
	// CookieName is the cookie carrying the signed JWT, e.g. "auth".
	CookieName string
	// TrustedKeys are the account/operator public keys allowed to have
	// issued the JWT.
	TrustedKeys []string
	// Audience, if non-empty, must match the JWT's audience claim.
	Audience string
}

// Authenticate implements Authenticator.
func (a *NkeyAuthenticator) Authenticate(r *Request) error {
	var token string
	for _, c := range r.Cookies {
		if c.Name == a.CookieName {
			token = c.Value
			break
		}
	}
	if token == "" {
		return fmt.Errorf("missing %q cookie", a.CookieName)
	}

	// DecodeGeneric verifies the embedded signature against the issuer's
	// own public key as part of decoding; a tampered token never gets
	// this far. The token's expiry is not checked.
	claims, err := jwt.DecodeGeneric(token)
	if err != nil {
		return fmt.Errorf("decoding JWT: %w", err)
	}
	if !isTrustedIssuer(claims.Issuer, a.TrustedKeys) {
		return fmt.Errorf("JWT issuer %q is not trusted", claims.Issuer)
	}
	if a.Audience != "" && claims.Audience != a.Audience {
		return fmt.Errorf("JWT audience %q does not match %q", claims.Audience, a.Audience)
	}
	return nil
}

func isTrustedIssuer(issuer string, trusted []string) bool {
	if !nkeys.IsValidPublicAccountKey(issuer) && !nkeys.IsValidPublicOperatorKey(issuer) {
		return false
	}
	for _, k := range trusted {
		if k == issuer {
			return true
		}
	}
	return false
}
