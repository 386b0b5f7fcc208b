package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/schoolkit/api/internal/platform/httpx"
)

const bearerPrefix = "Bearer "

// ErrInvalidToken indicates the bearer token failed signature or claim checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// Authenticator verifies HS256 bearer tokens issued for buyers.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator constructs an Authenticator over the shared signing secret.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Authenticator{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}, nil
}

type buyerClaims struct {
	BuyerID  int64  `json:"buyerId"`
	SchoolID *int64 `json:"schoolId,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates a raw token, returning the buyer identity.
func (a *Authenticator) Verify(raw string) (*Identity, error) {
	if a == nil {
		return nil, ErrInvalidToken
	}

	claims := &buyerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %s", ErrInvalidToken, t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		Subject:  claims.Subject,
		BuyerID:  claims.BuyerID,
		SchoolID: claims.SchoolID,
		Name:     claims.Name,
	}, nil
}

// RequireBuyer rejects requests without a valid bearer token and stores the
// identity on the request context.
func (a *Authenticator) RequireBuyer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" || !strings.HasPrefix(header, bearerPrefix) {
				httpx.WriteError(ctx, w, httpx.NewError("AUTH_REQUIRED", "authentication required", http.StatusUnauthorized))
				return
			}

			identity, err := a.Verify(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("AUTH_REQUIRED", "authentication required", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}
