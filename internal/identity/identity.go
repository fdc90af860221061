// Package identity issues and verifies the HS256 tokens the forum API
// hands out on sign-in.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emilythestrangee/forum-web/internal/apperr"
)

type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Issue signs a token for the user valid for ttl.
func Issue(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("identity: empty signing secret")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// Parse verifies raw and returns its claims.
func Parse(raw string, secret []byte) (Claims, error) {
	if raw == "" {
		return Claims{}, apperr.New(apperr.CodeUnauthenticated, "missing token")
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, apperr.New(apperr.CodeUnauthenticated, "invalid token claims")
	}
	userID, _ := mc["user_id"].(string)
	email, _ := mc["email"].(string)
	if userID == "" || email == "" {
		return Claims{}, apperr.New(apperr.CodeUnauthenticated, "token is missing identity claims")
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, apperr.Wrap(apperr.CodeUnauthenticated, "token has no expiry", err)
	}
	return Claims{UserID: userID, Email: email, ExpiresAt: exp.Time}, nil
}

// Bearer extracts the token from an Authorization header value.
func Bearer(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", apperr.New(apperr.CodeUnauthenticated, fmt.Sprintf("authorization header must start with %q", prefix))
	}
	return header[len(prefix):], nil
}
