package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// TokenTTL is the lifetime of issued tokens
const TokenTTL = 24 * time.Hour

// OperatorStore persists operator accounts
type OperatorStore interface {
	CreateOperator(ctx context.Context, username, passwordHash, email string) (int, error)
	GetOperatorCredentials(ctx context.Context, username string) (int, string, error)
}

// RevocationList remembers logged-out token ids
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Claims carried by issued tokens
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

type AuthModule struct {
	operators OperatorStore
	revoked   RevocationList
	JWTSecret string
	now       func() time.Time
}

func NewAuthModule(operators OperatorStore, revoked RevocationList, JWTSecret string) *AuthModule {
	return &AuthModule{
		operators: operators,
		revoked:   revoked,
		JWTSecret: JWTSecret,
		now:       time.Now,
	}
}

func (a *AuthModule) generateJWT(userID int) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

// Register creates an operator and returns a token for it
func (a *AuthModule) Register(ctx context.Context, username, password, email string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	userID, err := a.operators.CreateOperator(ctx, username, string(hashedPassword), email)
	if err != nil {
		return "", err
	}
	return a.generateJWT(userID)
}

// Login checks the credentials and returns a token
func (a *AuthModule) Login(ctx context.Context, username, password string) (string, error) {
	userID, passwordHash, err := a.operators.GetOperatorCredentials(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.generateJWT(userID)
}

func (a *AuthModule) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(a.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken returns the operator id of a valid, unrevoked token.
// A "Bearer " prefix is accepted.
func (a *AuthModule) ValidateToken(ctx context.Context, token string) (string, error) {
	claims, err := a.parse(token)
	if err != nil {
		return "", err
	}
	if a.revoked != nil {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return "", fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return "", ErrInvalidToken
		}
	}
	return strconv.Itoa(claims.UserID), nil
}

// Logout revokes the token for the rest of its lifetime
func (a *AuthModule) Logout(ctx context.Context, token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return err
	}
	if a.revoked == nil {
		return nil
	}
	return a.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(a.now()))
}
