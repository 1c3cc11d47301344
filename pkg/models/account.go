package models

import "fmt"

// Account is a ZIP 316 style 0-based account index.
type Account int

const (
	// AccountImported marks key material that was imported and has no
	// position in the seed hierarchy.
	AccountImported Account = -1
	// AccountDefault is the first account of a seed.
	AccountDefault Account = 0
)

// NewAccount validates an account index. -1 is accepted as the imported
// placeholder; anything lower is rejected.
func NewAccount(value int) (Account, error) {
	if value < int(AccountImported) {
		return 0, fmt.Errorf("%w: account index must be >= 0, or -1 for imported keys, got %d", ErrValidation, value)
	}
	return Account(value), nil
}

// Value returns the raw index.
func (a Account) Value() int {
	return int(a)
}

// IsImported reports whether a is the imported placeholder.
func (a Account) IsImported() bool {
	return a == AccountImported
}

func (a Account) String() string {
	if a.IsImported() {
		return "Account(imported)"
	}
	return fmt.Sprintf("Account(%d)", int(a))
}
