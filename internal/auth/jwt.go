// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry inspects a token that may be a JWT and returns its exp claim.
// The signature is deliberately not verified: the hub validates tokens,
// this side only wants to know whether sending one is pointless. Returns
// ok=false for opaque tokens, malformed JWTs, and JWTs without exp.
func Expiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// Expired reports whether the token is a JWT whose exp claim has passed.
// Opaque tokens are treated as non-expiring.
func Expired(token string) (bool, time.Time) {
	exp, ok := Expiry(token)
	if !ok {
		return false, time.Time{}
	}
	return time.Now().After(exp), exp
}
