package synchronizer

import (
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/flow"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// Streams holds the observable state and notification slots of a
// synchronizer. Implementations embed it and drive its values.
type Streams struct {
	StatusValue      *flow.Value[Status]
	ProcessorValue   *flow.Value[ProcessorInfo]
	OrchardValue     *flow.Value[*models.WalletBalance]
	SaplingValue     *flow.Value[*models.WalletBalance]
	TransparentValue *flow.Value[*models.Zatoshi]
	ProgressValue    *flow.Value[models.PercentDecimal]

	errorSlots map[ErrorKind]*flow.Slot[error]
	reorgSlot  *flow.Slot[Reorg]
}

// NewStreams returns streams in the stopped state with unknown balances.
func NewStreams() *Streams {
	s := &Streams{
		StatusValue:      flow.NewValue(StatusStopped),
		ProcessorValue:   flow.NewValue(ProcessorInfo{}),
		OrchardValue:     flow.NewValue[*models.WalletBalance](nil),
		SaplingValue:     flow.NewValue[*models.WalletBalance](nil),
		TransparentValue: flow.NewValue[*models.Zatoshi](nil),
		ProgressValue:    flow.NewValue(models.ZeroPercent),
		errorSlots:       make(map[ErrorKind]*flow.Slot[error], len(ErrorKinds)),
		reorgSlot:        flow.NewSlot[Reorg](),
	}
	for _, k := range ErrorKinds {
		s.errorSlots[k] = flow.NewSlot[error]()
	}
	return s
}

func (s *Streams) Status() flow.Source[Status]                         { return s.StatusValue }
func (s *Streams) ProcessorInfo() flow.Source[ProcessorInfo]           { return s.ProcessorValue }
func (s *Streams) OrchardBalances() flow.Source[*models.WalletBalance] { return s.OrchardValue }
func (s *Streams) SaplingBalances() flow.Source[*models.WalletBalance] { return s.SaplingValue }
func (s *Streams) TransparentBalance() flow.Source[*models.Zatoshi]    { return s.TransparentValue }
func (s *Streams) Progress() flow.Source[models.PercentDecimal]        { return s.ProgressValue }

// ErrorSlot returns nil for kinds without a slot.
func (s *Streams) ErrorSlot(kind ErrorKind) *flow.Slot[error] {
	return s.errorSlots[kind]
}

func (s *Streams) ReorgSlot() *flow.Slot[Reorg] {
	return s.reorgSlot
}

// ReportError publishes err on the slot of kind and reports whether a
// subscriber took it.
func (s *Streams) ReportError(kind ErrorKind, err error) bool {
	slot := s.errorSlots[kind]
	if slot == nil {
		return false
	}
	return slot.Publish(err)
}

// ReportReorg publishes a reorg notification.
func (s *Streams) ReportReorg(r Reorg) bool {
	return s.reorgSlot.Publish(r)
}
