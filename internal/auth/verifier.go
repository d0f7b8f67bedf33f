package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/uploads/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verifier checks HS256 access tokens issued by the external identity service.
// Tokens are never issued here.
type Verifier struct {
	secret  []byte
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewVerifier creates a Verifier from the auth settings.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	v := &Verifier{
		secret:  []byte(cfg.AccessTokenSecret),
		nowFunc: time.Now,
	}
	opts = append(opts, jwt.WithTimeFunc(func() time.Time { return v.nowFunc() }))
	v.parser = jwt.NewParser(opts...)
	return v
}

// ValidateAccessToken verifies the token signature and extracts user claims.
func (v *Verifier) ValidateAccessToken(tokenString string) (UserClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return UserClaims{}, ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return UserClaims{}, ErrTokenExpired
		}
		return UserClaims{}, ErrUnauthorized
	}
	if !parsed.Valid {
		return UserClaims{}, ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return UserClaims{}, ErrUnauthorized
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return UserClaims{}, ErrUnauthorized
	}

	result := UserClaims{UserID: userID}
	result.Email, _ = claims["email"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		result.IssuedAt = iat.Time
	}
	return result, nil
}
