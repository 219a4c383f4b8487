package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aq2208/storefront-api/configs"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownRole        = errors.New("unknown role")
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(s)); r {
	case RoleAdmin, RoleCustomer:
		return r, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownRole)
}

// Principal is the authenticated session user.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type user struct {
	principal Principal
	hash      []byte
}

// Users is the configured user registry, keyed by lower-cased email.
type Users struct {
	byEmail map[string]user
}

func NewUsers(list []configs.User) (*Users, error) {
	u := &Users{byEmail: make(map[string]user, len(list))}
	for _, cu := range list {
		role, err := ParseRole(cu.Role)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", cu.ID, err)
		}
		if cu.ID == "" || cu.Email == "" || cu.PasswordHash == "" {
			return nil, fmt.Errorf("user %q: id, email and password_hash required", cu.Email)
		}
		if _, err := bcrypt.Cost([]byte(cu.PasswordHash)); err != nil {
			return nil, fmt.Errorf("user %s password_hash: %w", cu.ID, err)
		}
		u.byEmail[strings.ToLower(cu.Email)] = user{
			principal: Principal{ID: cu.ID, Role: role},
			hash:      []byte(cu.PasswordHash),
		}
	}
	return u, nil
}

func (u *Users) Authenticate(email, password string) (Principal, error) {
	rec, ok := u.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		// same cost as a real comparison
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Principal{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(password)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return rec.principal, nil
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront"), bcrypt.MinCost)
