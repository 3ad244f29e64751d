package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// AccountController exposes the service's HTTP surface: registration, token
// obtain/verify, email confirmation, and the registration broadcast action.
type AccountController struct {
	Logger     Logger
	Repo       RepositoryManager
	Dispatcher TaskDispatcher
	Issuer     *TokenIssuer
	Verifier   *TokenVerifier
	Provider   *UserProvider
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Issuer == nil || c.Verifier == nil {
		panic("Missing token issuer or verifier in account controller...")
	}

	if c.Provider == nil {
		c.Provider = NewUserProvider(c.Repo.Users())
	}

	return c
}

// RegisterAccountRoutes mounts every route the service serves.
func RegisterAccountRoutes(app fiber.Router, opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)

	app.Post("/create-user", controller.CreateUser)
	app.Post("/users/confirm_email", controller.ConfirmEmail)
	app.Get("/users/:username/send_confirmation_email", controller.SendConfirmationEmail)
	app.Get("/users/broadcast_registration", controller.BroadcastRegistration)
	app.Post("/jwt/obtain", controller.ObtainToken)
	app.Post("/jwt/verify", controller.VerifyToken)

	return controller
}

// CreateUserPayload is the registration body
type CreateUserPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r CreateUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, UsernameMaxLen)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AccountController) CreateUser(ctx *fiber.Ctx) error {
	payload := new(CreateUserPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("create user parse payload: %v", err)
		return badRequest(ctx, fiber.Map{"form": []string{"Failed to parse body"}})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Debug("create user validate payload: %v", err)
		return badRequest(ctx, FormatValidationErrorToMap(err))
	}

	req := RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	}

	registerUser := RegisterUserHandler{
		Repo:       a.Repo,
		Dispatcher: a.Dispatcher,
		Logger:     a.Logger,
	}
	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("create user execute: %v", err)
		return badRequest(ctx, errorBody(err))
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"username": payload.Username,
		"email":    payload.Email,
	})
}

// ConfirmEmailPayload carries the redemption token, either in the body or
// the query string.
type ConfirmEmailPayload struct {
	Token string `json:"token" query:"token"`
}

func (a *AccountController) ConfirmEmail(ctx *fiber.Ctx) error {
	payload := new(ConfirmEmailPayload)

	// Query parameter wins over an unparseable body: the confirmation link
	// puts the token in the query string.
	_ = ctx.BodyParser(payload)
	if token := ctx.Query(confirmationParam); token != "" {
		payload.Token = token
	}

	if payload.Token == "" {
		return badRequest(ctx, fiber.Map{confirmationParam: []string{"This field is required."}})
	}

	confirm := ConfirmEmailHandler{
		Repo:     a.Repo,
		Verifier: a.Verifier,
		Logger:   a.Logger,
	}

	input := ConfirmEmailMessage{Token: payload.Token}

	if err := confirm.Execute(ctx.Context(), input); err != nil {
		a.Logger.Debug("confirm email rejected: %v", err)
		// Never tell callers why the token failed beyond "invalid".
		return badRequest(ctx, fiber.Map{confirmationParam: []string{"This field is missing or not valid."}})
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// SendConfirmationEmail re-enqueues the confirmation email for a user. The
// response is always 204: whether the account exists or is already
// confirmed is not disclosed.
func (a *AccountController) SendConfirmationEmail(ctx *fiber.Ctx) error {
	username := ctx.Params("username")

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), username)
	if err == nil && !user.EmailConfirmed && a.Dispatcher != nil {
		task := ConfirmationEmailTask{
			UUID:     user.ID.String(),
			Username: user.Username,
			Email:    user.Email,
		}
		if err := a.Dispatcher.Enqueue(ctx.Context(), TaskSendConfirmationEmail, task); err != nil {
			a.Logger.Error("failed to enqueue confirmation email: %v", err)
		}
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// BroadcastRegistration re-runs the registration fan-out for the
// authenticated caller.
func (a *AccountController) BroadcastRegistration(ctx *fiber.Ctx) error {
	claims, err := a.authenticate(ctx)
	if err != nil {
		return unauthorized(ctx)
	}

	if a.Dispatcher != nil {
		task := BroadcastRegistrationTask{UUID: claims.UserID()}
		if err := a.Dispatcher.Enqueue(ctx.Context(), TaskBroadcastRegistration, task); err != nil {
			a.Logger.Error("failed to enqueue registration broadcast: %v", err)
		}
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

// ObtainTokenPayload is the credentials body
type ObtainTokenPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r ObtainTokenPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) ObtainToken(ctx *fiber.Ctx) error {
	payload := new(ObtainTokenPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return badRequest(ctx, fiber.Map{"form": []string{"Failed to parse body"}})
	}

	if err := payload.Validate(); err != nil {
		return badRequest(ctx, FormatValidationErrorToMap(err))
	}

	identity, err := a.Provider.VerifyIdentity(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		a.Logger.Debug("obtain token rejected for %s", payload.Username)
		return badRequest(ctx, fiber.Map{"non_field_errors": []string{"Unable to log in with provided credentials."}})
	}

	token, err := a.Issuer.Issue(identity)
	if err != nil {
		a.Logger.Error("obtain token issue failed: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "Internal server error"})
	}

	return ctx.JSON(fiber.Map{"token": token})
}

func (a *AccountController) VerifyToken(ctx *fiber.Ctx) error {
	payload := new(ConfirmEmailPayload)

	_ = ctx.BodyParser(payload)
	if payload.Token == "" {
		return badRequest(ctx, fiber.Map{confirmationParam: []string{"This field is required."}})
	}

	if _, err := a.Verifier.Verify(payload.Token); err != nil {
		return badRequest(ctx, fiber.Map{confirmationParam: []string{"This field is missing or not valid."}})
	}

	return ctx.JSON(fiber.Map{"token": payload.Token})
}

// authenticate pulls a bearer token off the request and verifies it.
func (a *AccountController) authenticate(ctx *fiber.Ctx) (*IdentityClaims, error) {
	header := ctx.Get(fiber.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return nil, ErrTokenMalformed
	}
	return a.Verifier.Verify(token)
}

// FormatValidationErrorToMap turns an ozzo validation error into the
// field -> messages shape API clients expect.
func FormatValidationErrorToMap(err error) map[string][]string {
	out := map[string][]string{}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			out[field] = append(out[field], ferr.Error())
		}
		return out
	}

	if err != nil {
		out["non_field_errors"] = append(out["non_field_errors"], err.Error())
	}
	return out
}

func errorBody(err error) any {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return fiber.Map{"non_field_errors": []string{richErr.Message}}
	}
	return fiber.Map{"non_field_errors": []string{err.Error()}}
}

func badRequest(ctx *fiber.Ctx, body any) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(body)
}

func unauthorized(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"detail": "Authentication credentials were not provided or are invalid.",
	})
}
