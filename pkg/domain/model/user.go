package model

import (
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is the bcrypt cost used for stored passwords
const PasswordHashCost = 12

const (
	minPasswordLength = 6
	maxNameLength     = 50
)

// User is a registered account
type User struct {
	ID           types.UserID `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-" masq:"secret"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Role         types.Role   `json:"role"`
	IsActive     bool         `json:"isActive"`
	LastLogin    *time.Time   `json:"lastLogin,omitempty"`
	RefreshToken string       `json:"-" masq:"secret"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`

	// Password holds a new plain text password until PrepareUser hashes it.
	// It is never persisted.
	Password string `json:"-" firestore:"-" masq:"secret"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// VerifyPassword reports whether plain matches the stored hash
func (u *User) VerifyPassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// Validate checks the persisted fields of a user
func (u *User) Validate() error {
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if err := validateName("first name", u.FirstName); err != nil {
		return err
	}
	if err := validateName("last name", u.LastName); err != nil {
		return err
	}
	if !u.Role.Normalize().IsValid() {
		return goerr.Wrap(ErrValidation, "invalid role", goerr.V(RoleKey, u.Role))
	}
	if u.PasswordHash == "" && u.Password == "" {
		return goerr.Wrap(ErrValidation, "password is required")
	}
	return nil
}

// PrepareUser is the pre-commit transform every user store applies before
// writing. It normalizes the email, hashes a pending plain password and
// stamps timestamps.
func PrepareUser(u *User, now time.Time) error {
	u.Email = NormalizeEmail(u.Email)
	u.Role = u.Role.Normalize()

	if u.Password != "" {
		hash, err := HashPassword(u.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		u.Password = ""
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// HashPassword hashes plain with bcrypt
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordHashCost)
	if err != nil {
		return "", goerr.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

// ValidatePassword enforces the password rule: at least six characters with
// an upper case letter, a lower case letter and a digit.
func ValidatePassword(plain string) error {
	if len(plain) < minPasswordLength {
		return goerr.Wrap(ErrValidation, "password must be at least 6 characters long")
	}

	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return goerr.Wrap(ErrValidation, "password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return goerr.Wrap(ErrValidation, "invalid email address", goerr.V(EmailKey, email))
	}
	return nil
}

func validateName(field, v string) error {
	n := len([]rune(strings.TrimSpace(v)))
	if n < 1 || n > maxNameLength {
		return goerr.Wrap(ErrValidation, field+" must be between 1 and 50 characters", goerr.V("value", v))
	}
	return nil
}
