// Package viewer turns request credentials into the model.Viewer results are rendered for.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const defaultPrivilegedRole = "admin"

// Config holds the token verification settings shared with the gateway.
type Config struct {
	JWTSecret       string   `yaml:"jwtSecret"`
	JWTIssuer       string   `yaml:"jwtIssuer"`
	PrivilegedRoles []string `yaml:"privilegedRoles"`
}

// Resolver verifies access tokens.
type Resolver struct {
	secret     []byte
	issuer     string
	privileged []string
}

func NewResolver(cfg Config) *Resolver {
	roles := cfg.PrivilegedRoles
	if len(roles) == 0 {
		roles = []string{defaultPrivilegedRole}
	}
	return &Resolver{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer, privileged: roles}
}

type tokenClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Resolve maps a raw bearer token to a viewer. An empty token is the anonymous viewer.
func (r *Resolver) Resolve(_ context.Context, raw string) (model.Viewer, error) {
	if raw == "" {
		return model.Anonymous(), nil
	}
	claims, err := r.parseToken(raw)
	if err != nil {
		return model.Viewer{}, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return model.Viewer{}, appErr.New(appErr.TokenInvalid)
	}
	return model.Viewer{UserID: &userID, Privileged: r.isPrivileged(claims.Role)}, nil
}

func (r *Resolver) parseToken(raw string) (*tokenClaims, error) {
	if len(r.secret) == 0 {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErr.New(appErr.TokenExpired)
		}
		return nil, appErr.New(appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	if r.issuer != "" && claims.Issuer != r.issuer {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	if claims.TokenType != "access" || claims.Subject == "" {
		return nil, appErr.New(appErr.TokenInvalid)
	}
	return claims, nil
}

func (r *Resolver) isPrivileged(role string) bool {
	for _, item := range r.privileged {
		if strings.EqualFold(role, item) {
			return true
		}
	}
	return false
}
