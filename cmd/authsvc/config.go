package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/foothub/auth"
	"github.com/foothub/auth/mail"
)

// EnvConfig is the process configuration, read once at startup. It
// implements auth.Config; nothing else in the program touches the
// environment.
type EnvConfig struct {
	HTTPAddr string
	DBDSN    string

	SigningKeyPEM      string
	VerificationKeyPEM string

	TokenExpirationHours int
	ConfirmationTTL      time.Duration
	BroadcastTTL         time.Duration
	VerifyExpiration     bool

	FrontendURL string
	Subscribers []string

	AMQPURL   string
	AMQPQueue string

	SMTP mail.Config
}

var _ auth.Config = (*EnvConfig)(nil)

func LoadConfig() *EnvConfig {
	return &EnvConfig{
		HTTPAddr: getenv("AUTH_HTTP_ADDR", ":8000"),
		DBDSN:    getenv("AUTH_DB_DSN", "file:auth.db?cache=shared&mode=rwc"),

		SigningKeyPEM:      os.Getenv("AUTH_JWT_PRIVATE_KEY"),
		VerificationKeyPEM: os.Getenv("AUTH_JWT_PUBLIC_KEY"),

		TokenExpirationHours: getenvInt("AUTH_TOKEN_EXPIRATION_HOURS", 24),
		ConfirmationTTL:      getenvDuration("AUTH_CONFIRMATION_TOKEN_TTL", 24*time.Hour),
		BroadcastTTL:         getenvDuration("AUTH_BROADCAST_TOKEN_TTL", 5*time.Minute),
		VerifyExpiration:     getenvBool("AUTH_VERIFY_EXPIRATION", true),

		FrontendURL: getenv("AUTH_FRONTEND_URL", "http://localhost:3000"),
		Subscribers: getenvList("AUTH_BROADCAST_SUBSCRIBERS"),

		AMQPURL:   os.Getenv("AUTH_AMQP_URL"),
		AMQPQueue: getenv("AUTH_AMQP_QUEUE", "auth.tasks"),

		SMTP: mail.Config{
			Host:     getenv("AUTH_SMTP_HOST", "localhost"),
			Port:     getenvInt("AUTH_SMTP_PORT", 25),
			Username: os.Getenv("AUTH_SMTP_USERNAME"),
			Password: os.Getenv("AUTH_SMTP_PASSWORD"),
			From:     os.Getenv("AUTH_SMTP_FROM"),
		},
	}
}

func (c *EnvConfig) GetSigningKeyPEM() string      { return c.SigningKeyPEM }
func (c *EnvConfig) GetVerificationKeyPEM() string { return c.VerificationKeyPEM }
func (c *EnvConfig) GetTokenExpiration() int       { return c.TokenExpirationHours }

func (c *EnvConfig) GetConfirmationTokenTTL() time.Duration { return c.ConfirmationTTL }
func (c *EnvConfig) GetBroadcastTokenTTL() time.Duration    { return c.BroadcastTTL }
func (c *EnvConfig) GetVerifyExpiration() bool              { return c.VerifyExpiration }
func (c *EnvConfig) GetFrontendURL() string                 { return c.FrontendURL }
func (c *EnvConfig) GetSubscribers() []string               { return c.Subscribers }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
