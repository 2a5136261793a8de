package auth

import (
	"context"
	"errors"
	"strings"
)

var ErrUnknownAccount = errors.New("unknown account")

// Account is a user together with a bcrypt password hash.
type Account struct {
	User
	PasswordHash string
}

type Directory interface {
	Lookup(ctx context.Context, email string) (Account, error)
}

// StaticDirectory serves accounts loaded from configuration. Emails match case-insensitively.
type StaticDirectory struct {
	accounts map[string]Account
}

func NewStaticDirectory(accounts []Account) *StaticDirectory {
	d := &StaticDirectory{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		d.accounts[normalizeEmail(a.Email)] = a
	}
	return d
}

func (d *StaticDirectory) Lookup(_ context.Context, email string) (Account, error) {
	a, ok := d.accounts[normalizeEmail(email)]
	if !ok {
		return Account{}, ErrUnknownAccount
	}
	return a, nil
}

func (d *StaticDirectory) Len() int { return len(d.accounts) }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
