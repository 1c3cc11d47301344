// Package synchronizer defines the contract of the chain synchronizer the
// wallet consumes: observable status and balance streams, single-subscriber
// error slots and the transaction operations.
package synchronizer

import (
	"context"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/flow"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// Status is the coarse state of the synchronizer.
type Status int

const (
	StatusStopped Status = iota
	StatusDisconnected
	StatusSyncing
	StatusSynced
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusSyncing:
		return "SYNCING"
	case StatusSynced:
		return "SYNCED"
	default:
		return "UNKNOWN"
	}
}

// ProcessorInfo describes the block processor's view of the chain.
type ProcessorInfo struct {
	NetworkBlockHeight models.BlockHeight `json:"network_block_height"`
	LastSyncedHeight   models.BlockHeight `json:"last_synced_height"`
	IsSyncing          bool               `json:"is_syncing"`
}

// Synchronizer is the chain synchronizer of one loaded wallet. Balance
// streams carry nil until the first balance is known.
type Synchronizer interface {
	Status() flow.Source[Status]
	ProcessorInfo() flow.Source[ProcessorInfo]
	OrchardBalances() flow.Source[*models.WalletBalance]
	SaplingBalances() flow.Source[*models.WalletBalance]
	TransparentBalance() flow.Source[*models.Zatoshi]
	Progress() flow.Source[models.PercentDecimal]

	// ErrorSlot returns the notification slot for kind. KindChain has no
	// error slot; reorgs are reported through ReorgSlot.
	ErrorSlot(kind ErrorKind) *flow.Slot[error]
	ReorgSlot() *flow.Slot[Reorg]

	Send(ctx context.Context, usk *models.UnifiedSpendingKey, send models.ZecSend) ([]models.TransactionSubmitResult, error)
	ProposeSend(ctx context.Context, account models.Account, send models.ZecSend) (*models.Proposal, error)
	// ProposeShielding returns nil when there is nothing above threshold
	// to shield.
	ProposeShielding(ctx context.Context, account models.Account, threshold models.Zatoshi) (*models.Proposal, error)
	CreateProposedTransactions(ctx context.Context, proposal *models.Proposal, usk *models.UnifiedSpendingKey) ([]models.TransactionSubmitResult, error)
	// Rewind moves the scan position back to a recent checkpoint.
	Rewind(ctx context.Context) error
	Close(ctx context.Context) error
}
