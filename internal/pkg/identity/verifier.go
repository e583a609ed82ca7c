// Package identity verifies identity-provider session tokens and keeps the
// local user directory in sync with the provider's lifecycle webhooks.
package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	PrincipalID string
	SessionID   string
	Claims      map[string]interface{}
}

// StringClaim returns a string claim or "" when absent.
func (p *Principal) StringClaim(name string) string {
	if p == nil || p.Claims == nil {
		return ""
	}
	s, _ := p.Claims[name].(string)
	return s
}

// KeySource resolves signing keys by key id.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
	Refresh(ctx context.Context) (bool, error)
}

type VerifierOptions struct {
	Issuer            string
	AuthorizedParties []string
	Leeway            time.Duration
}

// Verifier validates RS256 session tokens against a KeySource.
type Verifier struct {
	keys    KeySource
	opts    VerifierOptions
	parties map[string]struct{}
}

func NewVerifier(keys KeySource, opts VerifierOptions) *Verifier {
	if opts.Leeway == 0 {
		opts.Leeway = 5 * time.Second
	}
	parties := make(map[string]struct{}, len(opts.AuthorizedParties))
	for _, p := range opts.AuthorizedParties {
		parties[p] = struct{}{}
	}
	return &Verifier{keys: keys, opts: opts, parties: parties}
}

// TokenFromHeader extracts the token from an Authorization header value.
func TokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Verify checks signature, expiry, issuer and authorized party. A signature
// failure triggers one key refresh and a retry so rotated keys are picked up.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}

	claims, err := v.parse(ctx, token)
	if err != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		if refreshed, refreshErr := v.keys.Refresh(ctx); refreshErr == nil && refreshed {
			claims, err = v.parse(ctx, token)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if len(v.parties) > 0 {
		if azp, ok := claims["azp"].(string); ok && azp != "" {
			if _, allowed := v.parties[azp]; !allowed {
				return nil, fmt.Errorf("%w: unauthorized party %q", ErrInvalidToken, azp)
			}
		}
	}

	sid, _ := claims["sid"].(string)
	return &Principal{
		PrincipalID: sub,
		SessionID:   sid,
		Claims:      claims,
	}, nil
}

func (v *Verifier) parse(ctx context.Context, token string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.Leeway),
	}
	if v.opts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.opts.Issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
