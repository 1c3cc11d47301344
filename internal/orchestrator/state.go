package orchestrator

import (
	"fmt"

	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// SecretState mirrors the persisted wallet record. It is one of
// SecretLoading, SecretNone or SecretReady.
type SecretState interface {
	isSecretState()
}

// SecretLoading is the state before the store has been read.
type SecretLoading struct{}

// SecretNone means no wallet has been persisted.
type SecretNone struct{}

// SecretReady carries the wallet read back from the store.
type SecretReady struct {
	Wallet *models.PersistableWallet
}

func (SecretLoading) isSecretState() {}
func (SecretNone) isSecretState()    {}
func (SecretReady) isSecretState()   {}

func (SecretLoading) String() string { return "Loading" }
func (SecretNone) String() string    { return "None" }
func (SecretReady) String() string   { return "Ready" }

// SendState tracks the single send or shield episode of an orchestrator.
// It is one of SendNone, SendSending, SendSent or SendError.
type SendState interface {
	isSendState()
}

type SendNone struct{}

type SendSending struct{}

// SendSent holds the submit results. Results is empty when a shielding run
// found nothing to shield.
type SendSent struct {
	Results []models.TransactionSubmitResult
}

type SendError struct {
	Err error
}

func (SendNone) isSendState()    {}
func (SendSending) isSendState() {}
func (SendSent) isSendState()    {}
func (SendError) isSendState()   {}

func (SendNone) String() string    { return "None" }
func (SendSending) String() string { return "Sending" }
func (SendSent) String() string    { return "Sent" }
func (s SendError) String() string { return fmt.Sprintf("Error %v", s.Err) }

func isSending(s SendState) bool {
	_, ok := s.(SendSending)
	return ok
}
