package command

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGIN USER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidCredentials is returned for a wrong username or password. The two
// cases are deliberately indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("login_user: invalid credentials")

// TokenIssuer signs access tokens for authenticated users.
// Implemented by internal/infrastructure/auth.
type TokenIssuer interface {
	Issue(username, role string) (string, error)
}

// LoginUserCommand contains login credentials.
type LoginUserCommand struct {
	Username string
	Password string
}

// Validate validates the command.
func (c LoginUserCommand) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// LoginUserResult contains the issued token and basic profile data.
type LoginUserResult struct {
	Token       string
	Username    string
	DisplayName string
	Level       int
	Role        string
}

// LoginUserHandler handles the LoginUserCommand.
type LoginUserHandler struct {
	userRepo user.Repository
	tokens   TokenIssuer
	log      *logger.Logger
}

// NewLoginUserHandler creates a new LoginUserHandler.
func NewLoginUserHandler(userRepo user.Repository, tokens TokenIssuer, log *logger.Logger) *LoginUserHandler {
	if log == nil {
		log = logger.Default()
	}
	return &LoginUserHandler{
		userRepo: userRepo,
		tokens:   tokens,
		log:      log.With(logger.Component("login_user")),
	}
}

// Handle executes the login.
func (h *LoginUserHandler) Handle(ctx context.Context, cmd LoginUserCommand) (*LoginUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	u, err := h.userRepo.GetByUsername(ctx, cmd.Username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cmd.Password)); err != nil {
		h.log.Warn("failed login attempt", logger.Username(cmd.Username))
		return nil, ErrInvalidCredentials
	}

	token, err := h.tokens.Issue(u.Username.String(), string(u.Role))
	if err != nil {
		return nil, err
	}

	h.log.Info("user logged in", logger.Username(u.Username.String()))

	return &LoginUserResult{
		Token:       token,
		Username:    u.Username.String(),
		DisplayName: u.DisplayName,
		Level:       int(u.Level),
		Role:        string(u.Role),
	}, nil
}
