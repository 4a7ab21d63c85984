package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
)

// Scope limits an anti-forgery token to one workflow action.
type Scope string

const (
	ScopeUpload  Scope = "upload"
	ScopeConfirm Scope = "confirm"
	ScopeFinish  Scope = "finish"
)

const securityCheckFailed = "Security check failed."

// TokenClaims are carried by every anti-forgery token.
type TokenClaims struct {
	Scope  Scope  `json:"scope"`
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies anti-forgery tokens bound to an owner, a
// workflow handle and a scope.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *TokenIssuer) Issue(owner, handle string, scope Scope) (string, error) {
	now := i.now()
	claims := TokenClaims{
		Scope:  scope,
		Handle: handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   owner,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", scope, err)
	}
	return signed, nil
}

// Verify fails with SecurityCheckFailed unless token is a live token for
// exactly this owner, handle and scope.
func (i *TokenIssuer) Verify(token, owner, handle string, scope Scope) error {
	if token == "" {
		return apperrors.New(apperrors.CodeSecurityCheckFailed, securityCheckFailed)
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithSubject(owner),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSecurityCheckFailed, securityCheckFailed, err)
	}
	if claims.Scope != scope || claims.Handle != handle {
		return apperrors.Wrap(apperrors.CodeSecurityCheckFailed, securityCheckFailed,
			errors.New("token issued for another action"))
	}
	return nil
}
