package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConfirmUserEmailSQL flips the confirmation flag. Running it again for an
// already confirmed user is a no-op, which is what makes token redemption
// idempotent and safe to race.
var ConfirmUserEmailSQL = `UPDATE "users" AS "usr"
SET
	"email_confirmed" = TRUE
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the storage capability set the auth flows need.
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	Delete(ctx context.Context, user *User) error
}

type users struct {
	repo repository.Repository[*User]
	db   *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		repo: repo,
		db:   db,
	}
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	record, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return record, nil
}

// GetByIdentifier looks a user up by username or, when the identifier parses
// as an address, by email.
func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	column := "username"
	if isEmail(identifier) {
		column = "email"
	}

	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), identifier).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.repo.CreateTx(ctx, tx, user)
}

func (a *users) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	return a.ConfirmEmailTx(ctx, a.db, id)
}

func (a *users) ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.repo.RawTx(ctx, tx, ConfirmUserEmailSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

func (a *users) Delete(ctx context.Context, user *User) error {
	_, err := a.db.NewDelete().
		Model(user).
		WherePK().
		Exec(ctx)
	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func isEmail(identifier string) bool {
	_, err := mail.ParseAddress(identifier)
	return err == nil
}
