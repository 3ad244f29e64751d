package auth

import (
	"regexp"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsernameMaxLen caps the length of a username.
const UsernameMaxLen = 30

// BlacklistedUsernames are reserved words that would collide with API routes.
var BlacklistedUsernames = []string{"me"}

var usernameRx = regexp.MustCompile(`^[\w.+-]+$`)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"uuid,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	EmailConfirmed bool       `bun:"email_confirmed" json:"email_confirmed"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Identity adapts the record to the Identity interface.
func (u *User) Identity() Identity {
	return userIdentity{
		id:       u.ID.String(),
		username: u.Username,
		email:    u.Email,
	}
}

type userIdentity struct {
	id       string
	username string
	email    string
}

func (a userIdentity) ID() string       { return a.id }
func (a userIdentity) Username() string { return a.username }
func (a userIdentity) Email() string    { return a.email }

var _ Identity = userIdentity{}

// ValidateUsername enforces the username contract: word characters plus
// ./+/-, bounded length, and not a reserved word.
func ValidateUsername(username string) error {
	if username == "" || len(username) > UsernameMaxLen {
		return goerrors.New("username must be 1 to 30 characters", goerrors.CategoryValidation)
	}

	if !usernameRx.MatchString(username) {
		return goerrors.New("username may contain only letters, numbers, and ./+/-/_ characters", goerrors.CategoryValidation)
	}

	for _, reserved := range BlacklistedUsernames {
		if username == reserved {
			return goerrors.New("username not allowed", goerrors.CategoryValidation)
		}
	}

	return nil
}
