package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// Config holds auth options
type Config interface {
	GetSigningKeyPEM() string
	GetVerificationKeyPEM() string
	GetTokenExpiration() int
	GetConfirmationTokenTTL() time.Duration
	GetBroadcastTokenTTL() time.Duration
	GetVerifyExpiration() bool
	GetFrontendURL() string
	GetSubscribers() []string
}

// TaskDispatcher hands work to an external async task runner. Delivery is
// at-least-once and happens off the caller's request path; the dispatcher
// never assumes a specific broker.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, task string, payload any) error
}

// Mailer delivers notification emails.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Task names understood by the dispatch worker.
const (
	TaskSendConfirmationEmail = "send_confirmation_email"
	TaskBroadcastRegistration = "broadcast_registration"
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
