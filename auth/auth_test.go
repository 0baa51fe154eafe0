package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type operator struct {
	id   int
	hash string
}

type fakeOperators struct {
	byName map[string]operator
}

func (f *fakeOperators) CreateOperator(_ context.Context, username, hash, _ string) (int, error) {
	if _, ok := f.byName[username]; ok {
		return 0, errors.New("username already exists")
	}
	id := len(f.byName) + 1
	f.byName[username] = operator{id: id, hash: hash}
	return id, nil
}

func (f *fakeOperators) GetOperatorCredentials(_ context.Context, username string) (int, string, error) {
	op, ok := f.byName[username]
	if !ok {
		return 0, "", errors.New("not found")
	}
	return op.id, op.hash, nil
}

type fakeRevocations struct {
	ids map[string]time.Duration
}

func (f *fakeRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	f.ids[id] = ttl
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := f.ids[id]
	return ok, nil
}

func newModule() (*AuthModule, *fakeRevocations) {
	rev := &fakeRevocations{ids: map[string]time.Duration{}}
	return NewAuthModule(&fakeOperators{byName: map[string]operator{}}, rev, "test-secret"), rev
}

func TestRegisterLoginValidate(t *testing.T) {
	a, _ := newModule()
	ctx := context.Background()

	token, err := a.Register(ctx, "alice", "correct horse", "alice@example.com")
	require.NoError(t, err)
	userID, err := a.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "1", userID)

	_, err = a.Register(ctx, "alice", "another password", "")
	assert.Error(t, err)

	token, err = a.Login(ctx, "alice", "correct horse")
	require.NoError(t, err)
	userID, err = a.ValidateToken(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "1", userID)

	_, err = a.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login(ctx, "bob", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_WeakPassword(t *testing.T) {
	a, _ := newModule()
	_, err := a.Register(context.Background(), "alice", "short", "")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestValidateToken_Rejects(t *testing.T) {
	a, _ := newModule()
	ctx := context.Background()
	token, err := a.Register(ctx, "alice", "correct horse", "")
	require.NoError(t, err)

	other := NewAuthModule(&fakeOperators{byName: map[string]operator{}}, nil, "other-secret")
	_, err = other.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	a.now = func() time.Time { return time.Now().Add(TokenTTL + time.Minute) }
	_, err = a.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestLogoutRevokes(t *testing.T) {
	a, rev := newModule()
	ctx := context.Background()
	token, err := a.Register(ctx, "alice", "correct horse", "")
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, token))
	require.Len(t, rev.ids, 1)
	for _, ttl := range rev.ids {
		assert.InDelta(t, TokenTTL.Seconds(), ttl.Seconds(), 5)
	}

	_, err = a.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
