package synchronizer

import (
	"errors"
	"fmt"

	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// ErrorKind identifies the synchronizer channel an error was reported on.
type ErrorKind int

const (
	KindCritical ErrorKind = iota
	KindProcessor
	KindSubmission
	KindSetup
	KindChain
)

// ErrorKinds lists the kinds that have an error slot.
var ErrorKinds = []ErrorKind{KindCritical, KindProcessor, KindSubmission, KindSetup}

func (k ErrorKind) String() string {
	switch k {
	case KindCritical:
		return "critical"
	case KindProcessor:
		return "processor"
	case KindSubmission:
		return "submission"
	case KindSetup:
		return "setup"
	case KindChain:
		return "chain"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is on an *Error.
var (
	ErrCritical   = errors.New("synchronizer critical error")
	ErrProcessor  = errors.New("block processor error")
	ErrSubmission = errors.New("transaction submission error")
	ErrSetup      = errors.New("synchronizer setup error")
	// ErrChainReorg is informational. The caller decides whether to rescan.
	ErrChainReorg = errors.New("chain reorganization")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindCritical:
		return ErrCritical
	case KindProcessor:
		return ErrProcessor
	case KindSubmission:
		return ErrSubmission
	case KindSetup:
		return ErrSetup
	case KindChain:
		return ErrChainReorg
	default:
		return nil
	}
}

// Reorg reports a chain reorganization: X is the height where the chains
// diverge, Y the new tip.
type Reorg struct {
	X models.BlockHeight `json:"x"`
	Y models.BlockHeight `json:"y"`
}

// Error is one error reported by the synchronizer.
type Error struct {
	Kind ErrorKind
	// Err is the cause. It may be nil, and is always nil for KindChain.
	Err error
	// Reorg is set for KindChain.
	Reorg Reorg
}

// NewError wraps a cause reported on kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewReorgError wraps a reorg notification.
func NewReorgError(r Reorg) *Error {
	return &Error{Kind: KindChain, Reorg: r}
}

func (e *Error) Error() string {
	if e.Kind == KindChain {
		return fmt.Sprintf("%s: %d, %d", ErrChainReorg, e.Reorg.X, e.Reorg.Y)
	}
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// CauseMessage returns the message of the cause, or the reorg heights for
// KindChain. It is empty when there is no cause.
func (e *Error) CauseMessage() string {
	if e.Kind == KindChain {
		return fmt.Sprintf("%d, %d", e.Reorg.X, e.Reorg.Y)
	}
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
