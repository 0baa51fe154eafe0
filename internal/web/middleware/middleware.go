package middleware

import (
	"context"
)

// TokenValidator resolves a bearer token to an operator id
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

type MiddlewareManager struct {
	auth TokenValidator
}

func NewMiddlewareManager(auth TokenValidator) *MiddlewareManager {
	return &MiddlewareManager{auth: auth}
}
