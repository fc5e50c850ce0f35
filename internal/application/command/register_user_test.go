package command

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

func TestRegisterUserCreatesAccount(t *testing.T) {
	users := newFakeUserRepo()
	bus := &fakeEventBus{}
	handler := NewRegisterUserHandler(users, bus, nil)

	result, err := handler.Handle(context.Background(), RegisterUserCommand{
		Username:    "greta",
		Password:    "s3cret-pass",
		DisplayName: "Greta T.",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "greta", result.Username)
	assert.Equal(t, "Greta T.", result.DisplayName)
	assert.Equal(t, 1, result.Level)

	stored := users.get("greta")
	require.NotNil(t, stored)

	// Пароль хранится только в виде bcrypt-хеша.
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))

	assert.True(t, bus.hasEventType(shared.EventUserRegistered))
}

func TestRegisterUserDuplicateUsername(t *testing.T) {
	users := newFakeUserRepo()
	users.put(newTestUser(t, "greta"))
	handler := NewRegisterUserHandler(users, &fakeEventBus{}, nil)

	_, err := handler.Handle(context.Background(), RegisterUserCommand{
		Username: "greta",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, user.ErrUserAlreadyExists)
}

func TestRegisterUserWeakPassword(t *testing.T) {
	handler := NewRegisterUserHandler(newFakeUserRepo(), &fakeEventBus{}, nil)

	_, err := handler.Handle(context.Background(), RegisterUserCommand{
		Username: "greta",
		Password: "12345",
	})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUserInvalidUsername(t *testing.T) {
	handler := NewRegisterUserHandler(newFakeUserRepo(), &fakeEventBus{}, nil)

	for _, username := range []string{"", "a", "has space", strings.Repeat("x", 51)} {
		_, err := handler.Handle(context.Background(), RegisterUserCommand{
			Username: username,
			Password: "s3cret-pass",
		})
		assert.ErrorIs(t, err, user.ErrInvalidUsername, "username %q", username)
	}
}
