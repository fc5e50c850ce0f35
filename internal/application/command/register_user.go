package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/shared"
	"github.com/ecolearn-hub/ecolearn-backend/internal/domain/user"
	"github.com/ecolearn-hub/ecolearn-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Creates a new user account with an empty gamification state. The rank
// index picks the user up on the first award (or via the reconciler).
// ══════════════════════════════════════════════════════════════════════════════

// ErrWeakPassword is returned when the password does not meet the minimum length.
var ErrWeakPassword = errors.New("register_user: password must be at least 6 characters")

// RegisterUserCommand contains the data to create an account.
type RegisterUserCommand struct {
	Username    string
	Password    string
	DisplayName string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RegisterUserCommand) Validate() error {
	if _, err := user.NewUsername(c.Username); err != nil {
		return err
	}
	if len(c.Password) < 6 {
		return ErrWeakPassword
	}
	return nil
}

// RegisterUserResult contains the created account data.
type RegisterUserResult struct {
	ID          string
	Username    string
	DisplayName string
	Level       int
}

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	userRepo       user.Repository
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(
	userRepo user.Repository,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *RegisterUserHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RegisterUserHandler{
		userRepo:       userRepo,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("register_user")),
	}
}

// Handle executes the registration.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register_user: failed to hash password: %w", err)
	}

	u, err := user.NewUser(user.NewUserParams{
		ID:           uuid.NewString(),
		Username:     cmd.Username,
		PasswordHash: string(hash),
		DisplayName:  cmd.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	if err := h.userRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register_user: %w", err)
	}

	h.log.Info("user registered", logger.Username(u.Username.String()))

	event := shared.NewUserRegisteredEvent(u.Username.String(), u.DisplayName)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &RegisterUserResult{
		ID:          u.ID,
		Username:    u.Username.String(),
		DisplayName: u.DisplayName,
		Level:       int(u.Level),
	}, nil
}
