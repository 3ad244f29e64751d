package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/foothub/auth"
	"github.com/foothub/auth/dispatch"
	"github.com/foothub/auth/mail"
)

func main() {
	_ = godotenv.Load()

	slogger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	logger := slogAdapter{l: slogger}

	cfg := LoadConfig()

	keys, err := auth.LoadKeyPair(cfg.GetSigningKeyPEM(), cfg.GetVerificationKeyPEM())
	if err != nil {
		fatal(slogger, "failed to load key material", err)
	}

	issuer, err := auth.NewTokenIssuer(keys, cfg, logger, auth.WithIssuerName("foothub.auth"))
	if err != nil {
		fatal(slogger, "failed to build token issuer", err)
	}

	verifier, err := auth.NewTokenVerifier(keys, cfg, logger)
	if err != nil {
		fatal(slogger, "failed to build token verifier", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DBDSN)
	if err != nil {
		fatal(slogger, "failed to open database", err)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	mailer := mail.NewSMTPMailer(cfg.SMTP)
	broadcaster := auth.NewBroadcaster(issuer, cfg, logger)

	confirmationHandler := &auth.SendConfirmationEmailHandler{
		Issuer: issuer,
		Mailer: mailer,
		Config: cfg,
		Logger: logger,
	}
	broadcastHandler := &auth.BroadcastRegistrationHandler{
		Broadcaster: broadcaster,
		Logger:      logger,
	}

	dispatcher, worker, err := buildDispatcher(cfg, logger, confirmationHandler, broadcastHandler)
	if err != nil {
		fatal(slogger, "failed to connect to task broker", err)
	}

	if worker != nil {
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				slogger.Error("task worker stopped", "error", err)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName:      "foothub-auth",
		ErrorHandler: fiberErrorHandler(slogger),
	})

	auth.RegisterAccountRoutes(app, func(c *auth.AccountController) *auth.AccountController {
		c.Logger = logger
		c.Repo = repo
		c.Dispatcher = dispatcher
		c.Issuer = issuer
		c.Verifier = verifier
		return c
	})

	go func() {
		slogger.Info("listening", "addr", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			slogger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slogger.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slogger.Error("http shutdown failed", "error", err)
	}
}

// buildDispatcher prefers the AMQP broker; without one it falls back to the
// in-process dispatcher so the confirmation and broadcast tasks still run.
func buildDispatcher(cfg *EnvConfig, logger slogAdapter, confirmation *auth.SendConfirmationEmailHandler, broadcast *auth.BroadcastRegistrationHandler) (auth.TaskDispatcher, *dispatch.Worker, error) {
	if cfg.AMQPURL == "" {
		logger.Info("no AMQP broker configured, running tasks in-process")
		local := dispatch.NewLocal(logger).
			Handle(auth.TaskSendConfirmationEmail, dispatch.ConfirmationEmailTaskFunc(confirmation)).
			Handle(auth.TaskBroadcastRegistration, dispatch.BroadcastTaskFunc(broadcast))
		return local, nil, nil
	}

	amqpDispatcher, err := dispatch.NewAMQPDispatcher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, nil, err
	}

	worker := dispatch.NewWorker(amqpDispatcher, logger).
		HandleConfirmationEmail(confirmation).
		HandleBroadcast(broadcast)

	return amqpDispatcher, worker, nil
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().Model((*auth.User)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func fiberErrorHandler(slogger *slog.Logger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			slogger.Error("request failed", "path", ctx.Path(), "error", err)
		}
		return ctx.Status(code).JSON(fiber.Map{"detail": err.Error()})
	}
}

// fatal aborts startup entirely. There is no degraded serving mode: a
// process missing its key material must not come up.
func fatal(slogger *slog.Logger, msg string, err error) {
	slogger.Error(msg, "error", err)
	os.Exit(1)
}

// slogAdapter backs the auth.Logger interface with slog.
type slogAdapter struct {
	l *slog.Logger
}

func (s slogAdapter) Debug(format string, args ...any) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s slogAdapter) Info(format string, args ...any)  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s slogAdapter) Error(format string, args ...any) { s.l.Error(fmt.Sprintf(format, args...)) }
