package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ConfirmEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(*ConfirmEmailResponse)
}

func (e ConfirmEmailMessage) Type() string { return "user.confirm_email" }

type ConfirmEmailResponse struct {
	UserID           string `json:"uuid"`
	Confirmed        bool   `json:"confirmed"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
}

// ConfirmEmailHandler redeems a confirmation token: it verifies the token,
// resolves the user behind the uuid claim, and flips the confirmation flag.
// Redeeming a still valid token for an already confirmed user is a no-op
// success, so concurrent redemptions are safe to race.
type ConfirmEmailHandler struct {
	Repo     RepositoryManager
	Verifier *TokenVerifier
	Logger   Logger
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	if event.Token == "" {
		return goerrors.New("token is required", goerrors.CategoryValidation)
	}

	claims, err := h.Verifier.Verify(event.Token)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &ConfirmEmailResponse{UserID: userID.String()}

	user, err := h.Repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for confirmation")
	}

	if user.EmailConfirmed {
		resp.Confirmed = true
		resp.AlreadyConfirmed = true
	} else if err := h.Repo.Users().ConfirmEmail(ctx, userID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm user email")
	} else {
		resp.Confirmed = true
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
