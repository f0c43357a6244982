// Package token signs and verifies the compact bearer tokens used by the
// auth endpoints. Tokens are stateless: validity is determined entirely by
// the signature and the embedded expiry.
package token

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Verification failures.
var (
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
)

// Codec signs and verifies HS256 tokens with a single server-held secret.
type Codec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCodec constructs a codec. A non-positive ttl falls back to DefaultTTL.
// The signing key is the SHA-256 digest of the secret, so any secret length
// satisfies the 32-byte HMAC key minimum HS256 enforces.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := sha256.Sum256([]byte(secret))
	return &Codec{key: key[:], ttl: ttl, now: time.Now}
}

// Issue mints a signed token for the given user id with iat=now and
// exp=now+ttl, both in whole seconds since epoch.
func (c *Codec) Issue(userID string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := c.now().UTC().Truncate(time.Second)
	claims := gojwt.Claims{
		Subject:  userID,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(c.ttl)),
	}

	raw, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

// Verify validates the signature and expiry and returns the embedded user id.
//
// The expiry boundary is inclusive: a token whose exp equals the current
// second is still accepted (verification uses zero leeway, and expiry only
// trips when now is strictly past exp).
func (c *Codec) Verify(raw string) (string, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return "", ErrMalformed
	}

	var claims gojwt.Claims
	if err := parsed.Claims(c.key, &claims); err != nil {
		return "", ErrInvalidSignature
	}

	if err := claims.ValidateWithLeeway(gojwt.Expected{Time: c.now()}, 0); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return "", ErrExpired
		}
		return "", ErrMalformed
	}
	if claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}
