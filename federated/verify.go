package federated

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goliatone/go-authclient"
)

// AssertionVerifier validates a raw signed ID token and extracts the profile
// claims the coordinator consumes.
type AssertionVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*authclient.Assertion, error)
}

// idTokenClaims is the subset of standard OIDC claims the adapter reads.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// JWKSVerifier validates assertions against the provider's published JWK
// set. Keys are refreshed in the background for the lifetime of the
// verifier.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	provider string
	issuer   string
	audience string
	methods  []string
}

var _ AssertionVerifier = (*JWKSVerifier)(nil)

// VerifierOption configures a JWKSVerifier.
type VerifierOption func(*JWKSVerifier)

// WithIssuer pins the expected issuer claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *JWKSVerifier) {
		v.issuer = issuer
	}
}

// WithAudience pins the expected audience claim (the OAuth client id).
func WithAudience(audience string) VerifierOption {
	return func(v *JWKSVerifier) {
		v.audience = audience
	}
}

// WithValidMethods restricts acceptable signing algorithms. Defaults to
// RS256, which is what the major providers issue.
func WithValidMethods(methods ...string) VerifierOption {
	return func(v *JWKSVerifier) {
		if len(methods) > 0 {
			v.methods = methods
		}
	}
}

// NewJWKSVerifier fetches the JWK set from jwksURL and keeps it refreshed.
func NewJWKSVerifier(provider, jwksURL string, opts ...VerifierOption) (*JWKSVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}
	return NewVerifierFromJWKS(provider, jwks, opts...), nil
}

// NewVerifierFromJWKS wraps an existing JWK set, letting callers supply
// static or pre-fetched keys.
func NewVerifierFromJWKS(provider string, jwks *keyfunc.JWKS, opts ...VerifierOption) *JWKSVerifier {
	v := &JWKSVerifier{
		jwks:     jwks,
		provider: provider,
		methods:  []string{"RS256"},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

// Verify implements AssertionVerifier.
func (v *JWKSVerifier) Verify(_ context.Context, rawIDToken string) (*authclient.Assertion, error) {
	claims := &idTokenClaims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(rawIDToken, claims, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrBadAssertion
	}

	return &authclient.Assertion{
		Provider:      v.provider,
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}
