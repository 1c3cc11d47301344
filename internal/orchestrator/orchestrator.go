// Package orchestrator coordinates one wallet: the persisted secret, the
// synchronizer session and the send or shield operation in flight.
//
// Secret writes are serialized by a mutex and the secret state is always
// the record read back from the store. At most one send or shield runs at a
// time; a second request while one is in flight is rejected with
// models.ErrConcurrentOperation. While a session is open the synchronizer's
// streams and error slots are combined into throttled snapshots.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/derivation"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/flow"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/synchronizer"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

var (
	// ErrSessionActive is returned when a session is opened while another
	// one is still open.
	ErrSessionActive = errors.New("a synchronizer session is already open")
	// ErrNoSession is returned by operations that need a synchronizer.
	ErrNoSession = errors.New("synchronizer is not loaded")
	// ErrNoWallet is returned by operations that need the persisted secret.
	ErrNoWallet = errors.New("no wallet is persisted")
)

// Operation kinds for metrics and logs.
const (
	OpSend    = "send"
	OpShield  = "shield"
	OpPropose = "propose"
)

// Config holds the tunables of an Orchestrator.
type Config struct {
	// SnapshotThrottle is the minimum interval between two snapshots.
	SnapshotThrottle time.Duration
	// ShieldingThreshold is the transparent balance below which shielding
	// proposes nothing.
	ShieldingThreshold models.Zatoshi
	// ReorgPollInterval and ReorgWindow drive the reorg detector of sessions
	// opened WithReorgDetection.
	ReorgPollInterval time.Duration
	ReorgWindow       uint64
}

func (c Config) withDefaults() Config {
	if c.SnapshotThrottle <= 0 {
		c.SnapshotThrottle = time.Second
	}
	if c.ShieldingThreshold <= 0 {
		c.ShieldingThreshold = 100_000
	}
	if c.ReorgPollInterval <= 0 {
		c.ReorgPollInterval = 30 * time.Second
	}
	if c.ReorgWindow == 0 {
		c.ReorgWindow = 100
	}
	return c
}

type session struct {
	id     string
	syn    synchronizer.Synchronizer
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
	errs   *errorSubscription
	reorgs *synchronizer.ReorgDetector
	logger *slog.Logger
}

type sessionOptions struct {
	fetcher synchronizer.BlockFetcher
}

// SessionOption configures OpenSession.
type SessionOption func(*sessionOptions)

// WithReorgDetection polls fetcher every Config.ReorgPollInterval and
// reports reorgs through the reorg slot of the session's synchronizer.
// Tracking starts at the wallet birthday, or at the last ReorgWindow blocks
// when the chain is already past that.
func WithReorgDetection(fetcher synchronizer.BlockFetcher) SessionOption {
	return func(o *sessionOptions) {
		o.fetcher = fetcher
	}
}

// slotReporter publishes detected reorgs into a reorg slot.
type slotReporter struct {
	slot *flow.Slot[synchronizer.Reorg]
}

func (r slotReporter) ReportReorg(reorg synchronizer.Reorg) bool {
	return r.slot.Publish(reorg)
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg     Config
	store   storage.WalletStore
	tool    *derivation.Tool
	metrics *metrics.Metrics
	logger  *slog.Logger

	persistMu sync.Mutex
	secret    *flow.Value[SecretState]

	// sendMu makes the check and the transition to Sending one step.
	sendMu sync.Mutex
	send   *flow.Value[SendState]

	sessionMu sync.Mutex
	session   *session

	syncErr  *flow.Value[*synchronizer.Error]
	snapshot *flow.Value[*WalletSnapshot]
}

func New(cfg Config, store storage.WalletStore, tool *derivation.Tool, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg.withDefaults(),
		store:    store,
		tool:     tool,
		metrics:  m,
		logger:   slog.Default().With("component", "orchestrator"),
		secret:   flow.NewValue[SecretState](SecretLoading{}),
		send:     flow.NewValue[SendState](SendNone{}),
		syncErr:  flow.NewValue[*synchronizer.Error](nil),
		snapshot: flow.NewValue[*WalletSnapshot](nil),
	}
}

// Start reads the persisted record and publishes the secret state. The
// state stays Loading if the store cannot be read.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	if err := o.reload(ctx); err != nil {
		o.logger.Error("load wallet failed", "error", err)
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	return nil
}

// SecretState returns the current secret state.
func (o *Orchestrator) SecretState() SecretState {
	return o.secret.Get()
}

// SecretStates streams secret state changes until ctx is done.
func (o *Orchestrator) SecretStates(ctx context.Context) <-chan SecretState {
	return o.secret.Subscribe(ctx)
}

// Wallet returns the persisted wallet, or ErrNoWallet.
func (o *Orchestrator) Wallet() (*models.PersistableWallet, error) {
	ready, ok := o.secret.Get().(SecretReady)
	if !ok {
		return nil, ErrNoWallet
	}
	return ready.Wallet, nil
}

// PersistNewWallet creates a wallet with a fresh seed phrase and persists
// it. A zero birthday starts scanning at the network's sapling activation.
func (o *Orchestrator) PersistNewWallet(ctx context.Context, network models.Network, endpoint string, birthday models.BlockHeight) (*models.PersistableWallet, error) {
	phrase, err := models.GenerateSeedPhrase()
	if err != nil {
		return nil, fmt.Errorf("generate seed phrase: %w", err)
	}
	if birthday == 0 {
		birthday = network.SaplingActivationHeight
	}
	w := &models.PersistableWallet{
		Network:  network,
		Endpoint: endpoint,
		Birthday: birthday,
		Seed:     models.SeedFromPhrase(phrase),
		InitMode: models.WalletInitNew,
	}
	if err := o.persist(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// PersistExistingWallet persists a restored or imported wallet.
func (o *Orchestrator) PersistExistingWallet(ctx context.Context, w *models.PersistableWallet) error {
	if w == nil || w.Seed.IsEmpty() {
		return fmt.Errorf("%w: wallet without seed", models.ErrValidation)
	}
	return o.persist(ctx, w)
}

func (o *Orchestrator) persist(ctx context.Context, w *models.PersistableWallet) error {
	o.persistMu.Lock()
	defer o.persistMu.Unlock()

	err := o.write(ctx, w)
	o.metrics.Persistence(err)
	if err != nil {
		o.logger.Error("persist wallet failed", "wallet", w, "error", err)
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	o.logger.Info("wallet persisted", "wallet", w)
	return nil
}

// write replaces the record and reads it back. Callers hold persistMu.
func (o *Orchestrator) write(ctx context.Context, w *models.PersistableWallet) error {
	_, err := o.store.Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read wallet record: %w", err)
	default:
		o.logger.Info("replacing persisted wallet")
	}

	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	if err := o.store.Put(ctx, data); err != nil {
		return fmt.Errorf("write wallet record: %w", err)
	}
	return o.reload(ctx)
}

func (o *Orchestrator) reload(ctx context.Context) error {
	data, err := o.store.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		o.secret.Set(SecretNone{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read wallet record: %w", err)
	}
	w := new(models.PersistableWallet)
	if err := json.Unmarshal(data, w); err != nil {
		return fmt.Errorf("decode wallet record: %w", err)
	}
	o.secret.Set(SecretReady{Wallet: w})
	return nil
}

// SpendingKey derives the unified spending key of the default account. A
// WIF stored with the wallet replaces the transparent component.
func (o *Orchestrator) SpendingKey(ctx context.Context) (*models.UnifiedSpendingKey, error) {
	w, err := o.Wallet()
	if err != nil {
		return nil, err
	}
	transparent, err := w.TransparentKey()
	if err != nil {
		return nil, err
	}
	defer models.Zero(transparent)
	if transparent != nil {
		o.logger.Debug("using imported transparent key")
	}
	return o.tool.DeriveUnifiedSpendingKey(ctx, transparent, "", w.Seed, w.Network, models.AccountDefault)
}

// Addresses derives the receiving addresses of the default account.
func (o *Orchestrator) Addresses(ctx context.Context) (models.WalletAddresses, error) {
	w, err := o.Wallet()
	if err != nil {
		return models.WalletAddresses{}, err
	}
	unified, err := o.tool.DeriveUnifiedAddress(ctx, w.Seed, w.Network, models.AccountDefault)
	if err != nil {
		return models.WalletAddresses{}, err
	}
	shielded, err := o.tool.DeriveShieldedAddress(ctx, w.Seed, w.Network, models.AccountDefault)
	if err != nil {
		return models.WalletAddresses{}, err
	}
	return models.WalletAddresses{Unified: unified, Shielded: shielded}, nil
}

// OpenSession attaches syn as the synchronizer of the loaded wallet and
// starts error aggregation and snapshot composition. The session lives
// until CloseSession or until ctx is done.
func (o *Orchestrator) OpenSession(ctx context.Context, syn synchronizer.Synchronizer, opts ...SessionOption) error {
	var so sessionOptions
	for _, opt := range opts {
		opt(&so)
	}

	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()

	if o.session != nil {
		return ErrSessionActive
	}
	errs, err := subscribeErrors(syn)
	if err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(sctx)
	id := uuid.NewString()
	s := &session{
		id:     id,
		syn:    syn,
		ctx:    gctx,
		cancel: cancel,
		g:      g,
		errs:   errs,
		logger: o.logger.With("session", id),
	}

	o.syncErr.Set(nil)
	errs.run(gctx, g, o.syncErr, o.metrics, s.logger)
	g.Go(func() error {
		return composeSnapshots(gctx, syn, o.syncErr, o.snapshot, o.cfg.SnapshotThrottle, o.metrics)
	})
	if so.fetcher != nil {
		rc := synchronizer.ReorgConfig{Window: o.cfg.ReorgWindow}
		if w, err := o.Wallet(); err == nil {
			rc.StartHeight = w.Birthday
		}
		s.reorgs = synchronizer.NewReorgDetector(so.fetcher, slotReporter{slot: syn.ReorgSlot()}, o.cfg.ReorgPollInterval, rc)
		s.reorgs.Start(gctx)
	}

	o.session = s
	s.logger.Info("session opened")
	return nil
}

// SessionID returns the id of the open session, or "".
func (o *Orchestrator) SessionID() string {
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	if o.session == nil {
		return ""
	}
	return o.session.id
}

func (o *Orchestrator) currentSession() *session {
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	return o.session
}

// CloseSession cancels the tasks of the open session, waits for them and
// closes the synchronizer. Transactions already submitted are not recalled.
// It does nothing when no session is open.
func (o *Orchestrator) CloseSession(ctx context.Context) error {
	o.sessionMu.Lock()
	s := o.session
	o.session = nil
	o.sessionMu.Unlock()

	if s == nil {
		return nil
	}
	s.cancel()
	if s.reorgs != nil {
		s.reorgs.Stop()
	}
	_ = s.g.Wait()
	s.errs.close()
	o.snapshot.Set(nil)
	o.syncErr.Set(nil)

	if err := s.syn.Close(ctx); err != nil {
		s.logger.Error("close synchronizer failed", "error", err)
		return fmt.Errorf("close synchronizer: %w", err)
	}
	s.logger.Info("session closed")
	return nil
}

// Close ends the open session, if any.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.CloseSession(ctx)
}

// Snapshot returns the latest snapshot, or nil when no session is open or
// nothing has been emitted yet.
func (o *Orchestrator) Snapshot() *WalletSnapshot {
	return o.snapshot.Get()
}

// Snapshots streams snapshots until ctx is done. nil means no snapshot is
// available.
func (o *Orchestrator) Snapshots(ctx context.Context) <-chan *WalletSnapshot {
	return o.snapshot.Subscribe(ctx)
}

// SynchronizerError returns the latest error reported by the synchronizer
// of the open session, or nil.
func (o *Orchestrator) SynchronizerError() *synchronizer.Error {
	return o.syncErr.Get()
}

// SendState returns the state of the current send or shield episode.
func (o *Orchestrator) SendState() SendState {
	return o.send.Get()
}

// SendStates streams send state changes until ctx is done.
func (o *Orchestrator) SendStates(ctx context.Context) <-chan SendState {
	return o.send.Subscribe(ctx)
}

// Send submits zs in the background. The outcome is reported through the
// send state. It fails with models.ErrConcurrentOperation while another
// send or shield is in flight, and with ErrNoSession, after moving the
// send state to Error, when no synchronizer is loaded.
func (o *Orchestrator) Send(zs models.ZecSend) error {
	if err := zs.Validate(); err != nil {
		o.metrics.Operation(OpSend, metrics.ResultRejected)
		return err
	}
	return o.start(OpSend, func(ctx context.Context, sub *submitter, usk *models.UnifiedSpendingKey) ([]models.TransactionSubmitResult, error) {
		return sub.send(ctx, usk, zs)
	})
}

// Shield shields transparent funds above the configured threshold in the
// background, with the same rules as Send.
func (o *Orchestrator) Shield() error {
	return o.start(OpShield, func(ctx context.Context, sub *submitter, usk *models.UnifiedSpendingKey) ([]models.TransactionSubmitResult, error) {
		return sub.shield(ctx, usk)
	})
}

type operation func(context.Context, *submitter, *models.UnifiedSpendingKey) ([]models.TransactionSubmitResult, error)

func (o *Orchestrator) start(kind string, op operation) error {
	o.sendMu.Lock()
	defer o.sendMu.Unlock()

	if isSending(o.send.Get()) {
		o.metrics.Operation(kind, metrics.ResultRejected)
		o.logger.Warn("operation rejected", "kind", kind, "reason", "in flight")
		return fmt.Errorf("%s: %w", kind, models.ErrConcurrentOperation)
	}
	o.send.Set(SendSending{})

	// sessionMu is held across g.Go so CloseSession cannot start waiting
	// before the task is registered.
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	s := o.session
	if s == nil {
		err := fmt.Errorf("%s: %w", kind, ErrNoSession)
		o.settle(kind, nil, err)
		return err
	}

	sub := &submitter{syn: s.syn, threshold: o.cfg.ShieldingThreshold, logger: s.logger.With("kind", kind)}
	s.g.Go(func() error {
		results, err := o.run(s.ctx, sub, op)
		o.sendMu.Lock()
		o.settle(kind, results, err)
		o.sendMu.Unlock()
		return nil
	})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, sub *submitter, op operation) ([]models.TransactionSubmitResult, error) {
	usk, err := o.SpendingKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("spending key: %w", err)
	}
	defer usk.Wipe()
	return op(ctx, sub, usk)
}

// settle moves Sending to its terminal state. Callers hold sendMu.
func (o *Orchestrator) settle(kind string, results []models.TransactionSubmitResult, err error) {
	if err != nil {
		o.metrics.Operation(kind, metrics.ResultError)
		o.logger.Error("operation failed", "kind", kind, "error", err)
		o.send.Set(SendError{Err: err})
		return
	}
	res := metrics.ResultOK
	if !models.AllSucceeded(results) {
		res = metrics.ResultError
	}
	o.metrics.Operation(kind, res)
	o.logger.Info("operation finished", "kind", kind, "results", len(results))
	o.send.Set(SendSent{Results: results})
}

// ClearSendState resets a finished episode to None. An episode still in
// flight cannot be cleared.
func (o *Orchestrator) ClearSendState() error {
	o.sendMu.Lock()
	defer o.sendMu.Unlock()

	if isSending(o.send.Get()) {
		return models.ErrConcurrentOperation
	}
	o.send.Set(SendNone{})
	return nil
}

// ProposeSend asks the synchronizer for a proposal for zs without
// submitting anything. It is rejected while a send or shield is in flight.
func (o *Orchestrator) ProposeSend(ctx context.Context, zs models.ZecSend) (*models.Proposal, error) {
	if isSending(o.send.Get()) {
		o.metrics.Operation(OpPropose, metrics.ResultRejected)
		return nil, fmt.Errorf("%s: %w", OpPropose, models.ErrConcurrentOperation)
	}
	if err := zs.Validate(); err != nil {
		return nil, err
	}
	s := o.currentSession()
	if s == nil {
		return nil, fmt.Errorf("%s: %w", OpPropose, ErrNoSession)
	}
	proposal, err := s.syn.ProposeSend(ctx, models.AccountDefault, zs)
	if err != nil {
		o.metrics.Operation(OpPropose, metrics.ResultError)
		s.logger.Error("proposal failed", "error", err)
		return nil, fmt.Errorf("%s: %w", OpPropose, err)
	}
	o.metrics.Operation(OpPropose, metrics.ResultOK)
	return proposal, nil
}

// Rewind moves the synchronizer's scan position back to a recent
// checkpoint.
func (o *Orchestrator) Rewind(ctx context.Context) error {
	s := o.currentSession()
	if s == nil {
		return ErrNoSession
	}
	if err := s.syn.Rewind(ctx); err != nil {
		return fmt.Errorf("rewind: %w", err)
	}
	s.logger.Info("rewound")
	return nil
}
