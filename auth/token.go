package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the validated claims from an API token.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Validator validates HS256 bearer JWTs issued by the orchestrator or an
// operator against a shared secret.
type Validator struct {
	secret   []byte
	audience string
}

func NewValidator(secret, audience string) *Validator {
	return &Validator{secret: []byte(secret), audience: audience}
}

// Validate parses and validates a JWT string.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware validates Authorization: Bearer JWTs. Requests without a
// bearer header are passed through to allow fallback auth (static token).
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		token := header[7:]
		// Static tokens are not JWTs; let downstream auth handle them.
		if strings.Count(token, ".") != 2 {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := v.Validate(token); err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
