package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// ConfirmationEmailTask is the payload enqueued for the confirmation email.
type ConfirmationEmailTask struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// BroadcastRegistrationTask is the payload enqueued for the subscriber
// fan-out. It deliberately carries only the identifier.
type BroadcastRegistrationTask struct {
	UUID string `json:"uuid"`
}

// RegisterUserHandler persists a new user and hands the confirmation email
// and the registration broadcast to the async dispatcher. Neither task is
// guaranteed to complete, or even start, before the handler returns.
type RegisterUserHandler struct {
	Repo       RepositoryManager
	Dispatcher TaskDispatcher
	Logger     Logger
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := ValidateUsername(event.Username); err != nil {
		return err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Username = event.Username
		user.Email = event.Email
		user.PasswordHash = hash

		if user, err = h.Repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	h.dispatch(ctx, user)

	return nil
}

// dispatch enqueues the post-registration tasks. Enqueue failures are logged
// and swallowed: the account exists, the confirmation email can be re-sent.
func (h *RegisterUserHandler) dispatch(ctx context.Context, user *User) {
	if h.Dispatcher == nil {
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = defLogger{}
	}

	confirmation := ConfirmationEmailTask{
		UUID:     user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
	}
	if err := h.Dispatcher.Enqueue(ctx, TaskSendConfirmationEmail, confirmation); err != nil {
		logger.Error("failed to enqueue confirmation email for user %s: %v", user.ID.String(), err)
	}

	broadcast := BroadcastRegistrationTask{UUID: user.ID.String()}
	if err := h.Dispatcher.Enqueue(ctx, TaskBroadcastRegistration, broadcast); err != nil {
		logger.Error("failed to enqueue registration broadcast for user %s: %v", user.ID.String(), err)
	}
}
