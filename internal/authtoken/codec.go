// Package authtoken encodes and decodes the signed access/refresh tokens
// carried by the admin frontend. The codec is stateless; revocation and
// session state live in the token cache.
package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the two token kinds inside a claim set.
type Kind string

const (
	// KindAccess marks short-lived tokens presented on every protected request.
	KindAccess Kind = "access"
	// KindRefresh marks longer-lived tokens exchanged for a new pair.
	KindRefresh Kind = "refresh"
)

// Claims is the payload carried inside a signed token. Profile fields are
// denormalized copies taken at issuance time; refresh tokens carry only the
// subject. A claim set is immutable once encoded.
type Claims struct {
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
	Kind         Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Status classifies the outcome of Decode.
type Status int

const (
	// StatusValid means signature and expiry checks passed.
	StatusValid Status = iota
	// StatusExpired means the signature is good but now >= expires_at.
	StatusExpired
	// StatusMalformed covers garbage input and signature mismatches.
	StatusMalformed
)

// DecodeResult is the sum-type outcome of Decode. Claims is non-nil only
// when Status is StatusValid.
type DecodeResult struct {
	Status Status
	Claims *Claims
}

// Valid reports whether the decode succeeded.
func (r DecodeResult) Valid() bool { return r.Status == StatusValid }

// Config parameterizes a Codec.
type Config struct {
	// Secret is the process-wide HS256 signing secret.
	Secret []byte
	// AccessTTL bounds access-token lifetime (expires_at - issued_at).
	AccessTTL time.Duration
	// RefreshTTL bounds refresh-token lifetime.
	RefreshTTL time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies tokens with a symmetric key. Instances are
// immutable and safe for concurrent use.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec validates cfg and builds a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a signing secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{
		secret:     cfg.Secret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

// TTL returns the configured lifetime for a token kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue stamps kind plus issued_at/expires_at onto claims and returns the
// signed compact token string.
func (c *Codec) Issue(claims Claims, kind Kind) (string, error) {
	now := c.now()
	claims.Kind = kind
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.TTL(kind)))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies signature and expiry and returns a DecodeResult. Decode
// failures are expected on every anonymous or expired request, so they are
// reported as a sentinel status rather than an error: callers do a single
// exhaustive match and never see a decode failure as an exception.
//
// Expiry is checked with zero leeway. Issuer and audience are not validated;
// the deployment is single-tenant.
func (c *Codec) Decode(tokenStr string) DecodeResult {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return DecodeResult{Status: StatusExpired}
		}
		return DecodeResult{Status: StatusMalformed}
	}
	if !token.Valid {
		return DecodeResult{Status: StatusMalformed}
	}

	return DecodeResult{Status: StatusValid, Claims: claims}
}
