package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/synchronizer"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// submitter runs one send or shield against the synchronizer of a session.
type submitter struct {
	syn       synchronizer.Synchronizer
	threshold models.Zatoshi
	logger    *slog.Logger
}

func (s *submitter) send(ctx context.Context, usk *models.UnifiedSpendingKey, zs models.ZecSend) ([]models.TransactionSubmitResult, error) {
	s.logger.Info("submitting send",
		"account", usk.Account().Value(),
		"destination", zs.Destination,
		"amount", zs.Amount,
	)

	results, err := s.syn.Send(ctx, usk, zs)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	s.logResults(results)
	return results, nil
}

// shield proposes shielding of transparent funds above the threshold and
// submits the proposal. It returns no results when there is nothing to
// shield.
func (s *submitter) shield(ctx context.Context, usk *models.UnifiedSpendingKey) ([]models.TransactionSubmitResult, error) {
	proposal, err := s.syn.ProposeShielding(ctx, usk.Account(), s.threshold)
	if err != nil {
		return nil, fmt.Errorf("propose shielding: %w", err)
	}
	if proposal == nil {
		s.logger.Info("nothing to shield", "threshold", s.threshold)
		return nil, nil
	}

	s.logger.Info("submitting shielding",
		"transactions", proposal.TransactionCount,
		"fee", proposal.TotalFee,
	)
	results, err := s.syn.CreateProposedTransactions(ctx, proposal, usk)
	if err != nil {
		return nil, fmt.Errorf("create proposed transactions: %w", err)
	}
	s.logResults(results)
	return results, nil
}

func (s *submitter) logResults(results []models.TransactionSubmitResult) {
	for _, r := range results {
		switch r := r.(type) {
		case models.SubmitSuccess:
			s.logger.Info("transaction submitted", "txid", r.ID)
		case models.SubmitFailure:
			s.logger.Warn("transaction submission failed",
				"txid", r.ID,
				"grpc_error", r.GRPCError,
				"code", r.Code,
				"description", r.Description,
			)
		case models.SubmitNotAttempted:
			s.logger.Warn("transaction not submitted", "txid", r.ID)
		}
	}
}
