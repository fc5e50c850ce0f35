package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
)

func newLoginFixture(t *testing.T) (*fakeUserRepo, *LoginUserHandler) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	u, err := user.NewUser(user.NewUserParams{
		ID:           "id-greta",
		Username:     "greta",
		PasswordHash: string(hash),
		DisplayName:  "Greta T.",
	})
	require.NoError(t, err)

	users := newFakeUserRepo()
	users.put(u)

	return users, NewLoginUserHandler(users, &fakeTokenIssuer{}, nil)
}

func TestLoginUserSuccess(t *testing.T) {
	_, handler := newLoginFixture(t)

	result, err := handler.Handle(context.Background(), LoginUserCommand{
		Username: "greta",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, "token-greta", result.Token)
	assert.Equal(t, "greta", result.Username)
	assert.Equal(t, "Greta T.", result.DisplayName)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, string(user.RoleUser), result.Role)
}

func TestLoginUserWrongPassword(t *testing.T) {
	_, handler := newLoginFixture(t)

	_, err := handler.Handle(context.Background(), LoginUserCommand{
		Username: "greta",
		Password: "wrong-pass",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUserUnknownUser(t *testing.T) {
	_, handler := newLoginFixture(t)

	// Неизвестный логин неотличим от неверного пароля.
	_, err := handler.Handle(context.Background(), LoginUserCommand{
		Username: "nobody",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUserEmptyCredentials(t *testing.T) {
	_, handler := newLoginFixture(t)

	_, err := handler.Handle(context.Background(), LoginUserCommand{Username: "greta"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUserTokenIssueFailure(t *testing.T) {
	users, _ := newLoginFixture(t)
	issueErr := errors.New("signing key unavailable")
	handler := NewLoginUserHandler(users, &fakeTokenIssuer{issueErr: issueErr}, nil)

	_, err := handler.Handle(context.Background(), LoginUserCommand{
		Username: "greta",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, issueErr)
}
