package models

import (
	"fmt"
	"log/slog"
)

// Zatoshi is the smallest currency unit.
type Zatoshi int64

// ZatoshiPerCoin is the number of zatoshi in one coin.
const ZatoshiPerCoin Zatoshi = 100_000_000

func (z Zatoshi) String() string {
	sign := ""
	v := int64(z)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%08d", sign, v/int64(ZatoshiPerCoin), v%int64(ZatoshiPerCoin))
}

// WalletBalance is the balance of one shielded pool.
type WalletBalance struct {
	Available     Zatoshi `json:"available"`
	ChangePending Zatoshi `json:"change_pending"`
	ValuePending  Zatoshi `json:"value_pending"`
}

// Total returns the sum of available and pending value.
func (b WalletBalance) Total() Zatoshi {
	return b.Available + b.ChangePending + b.ValuePending
}

// PercentDecimal is sync progress in [0, 1].
type PercentDecimal float32

// ZeroPercent and OneHundredPercent bound the progress value.
const (
	ZeroPercent       PercentDecimal = 0
	OneHundredPercent PercentDecimal = 1
)

// ZecSend is a request to send funds to one recipient.
type ZecSend struct {
	Destination string    `json:"destination"`
	Amount      Zatoshi   `json:"amount"`
	Memo        string    `json:"memo,omitempty"`
	Proposal    *Proposal `json:"-"`
}

// Validate checks the fields that can be checked without a backend.
func (s ZecSend) Validate() error {
	if s.Destination == "" {
		return fmt.Errorf("%w: destination must not be empty", ErrValidation)
	}
	if s.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrValidation, s.Amount)
	}
	return nil
}

// Proposal is a set of transactions the synchronizer intends to create.
type Proposal struct {
	TransactionCount int     `json:"transaction_count"`
	TotalFee         Zatoshi `json:"total_fee"`
}

// TransactionSubmitResult is the outcome of submitting one transaction. It
// is one of SubmitSuccess, SubmitFailure or SubmitNotAttempted.
type TransactionSubmitResult interface {
	TxID() string
	isSubmitResult()
}

// SubmitSuccess means the transaction was accepted by the server.
type SubmitSuccess struct {
	ID string
}

// SubmitFailure means the server rejected the transaction, or the request
// failed on the way.
type SubmitFailure struct {
	ID          string
	GRPCError   bool
	Code        int
	Description string
}

// SubmitNotAttempted means an earlier failure in the same proposal stopped
// this transaction from being sent.
type SubmitNotAttempted struct {
	ID string
}

func (r SubmitSuccess) TxID() string      { return r.ID }
func (r SubmitFailure) TxID() string      { return r.ID }
func (r SubmitNotAttempted) TxID() string { return r.ID }

func (SubmitSuccess) isSubmitResult()      {}
func (SubmitFailure) isSubmitResult()      {}
func (SubmitNotAttempted) isSubmitResult() {}

// AllSucceeded reports whether every result is a SubmitSuccess.
func AllSucceeded(results []TransactionSubmitResult) bool {
	for _, r := range results {
		if _, ok := r.(SubmitSuccess); !ok {
			return false
		}
	}
	return true
}

// WalletAddresses are the receiving addresses of the default account.
type WalletAddresses struct {
	Unified  string `json:"unified"`
	Shielded string `json:"shielded"`
}

func (a WalletAddresses) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("unified", a.Unified),
		slog.String("shielded", a.Shielded),
	)
}
