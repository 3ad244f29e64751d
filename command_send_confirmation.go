package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	confirmationPath    = "/confirm-registration"
	confirmationParam   = "token"
	confirmationSubject = "FootHub Registration"
)

// SendConfirmationEmailHandler issues a confirmation token for a freshly
// registered user and mails the confirmation link. It runs on the worker,
// never on the registration request path.
type SendConfirmationEmailHandler struct {
	Issuer *TokenIssuer
	Mailer Mailer
	Config Config
	Logger Logger
}

func (h *SendConfirmationEmailHandler) Execute(ctx context.Context, task ConfirmationEmailTask) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while sending confirmation email")
	default:
		return h.execute(ctx, task)
	}
}

func (h *SendConfirmationEmailHandler) execute(ctx context.Context, task ConfirmationEmailTask) error {
	if task.Email == "" {
		return goerrors.New("confirmation task is missing the recipient email", goerrors.CategoryBadInput)
	}

	identity := userIdentity{id: task.UUID, username: task.Username, email: task.Email}

	token, err := h.Issuer.IssueWithTTL(identity, h.Config.GetConfirmationTokenTTL())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue confirmation token")
	}

	link := ConfirmationURL(h.Config.GetFrontendURL(), token)
	body := fmt.Sprintf("Use the link to confirm email: %s", link)

	if err := h.Mailer.Send(ctx, task.Email, confirmationSubject, body); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver confirmation email")
	}

	if h.Logger != nil {
		h.Logger.Info("confirmation email sent to user %s", task.UUID)
	}

	return nil
}

// ConfirmationURL builds the frontend confirmation link. The path segment
// and the query parameter name are part of the contract with the person
// reading the email and must not change.
func ConfirmationURL(frontendBase, token string) string {
	base := strings.TrimRight(frontendBase, "/")
	return base + confirmationPath + "?" + confirmationParam + "=" + url.QueryEscape(token)
}
