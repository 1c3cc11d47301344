package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend/software"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/derivation"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/flow"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/synchronizer"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

const (
	testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
	testWIF    = "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ"

	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var errBoom = errors.New("boom")

// fakeSync is a synchronizer whose operations are scripted by the test.
type fakeSync struct {
	*synchronizer.Streams

	// release, when set, blocks Send until it is closed.
	release chan struct{}

	mu             sync.Mutex
	results        []models.TransactionSubmitResult
	sendErr        error
	shieldProposal *models.Proposal
	threshold      models.Zatoshi

	sends   atomic.Int32
	creates atomic.Int32
	rewinds atomic.Int32
	closes  atomic.Int32
}

func newFakeSync() *fakeSync {
	return &fakeSync{
		Streams: synchronizer.NewStreams(),
		results: []models.TransactionSubmitResult{models.SubmitSuccess{ID: "tx-1"}},
	}
}

func (f *fakeSync) Send(ctx context.Context, _ *models.UnifiedSpendingKey, _ models.ZecSend) ([]models.TransactionSubmitResult, error) {
	f.sends.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, f.sendErr
}

func (f *fakeSync) ProposeSend(_ context.Context, _ models.Account, zs models.ZecSend) (*models.Proposal, error) {
	return &models.Proposal{TransactionCount: 1, TotalFee: 10_000}, nil
}

func (f *fakeSync) ProposeShielding(_ context.Context, _ models.Account, threshold models.Zatoshi) (*models.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = threshold
	return f.shieldProposal, nil
}

func (f *fakeSync) CreateProposedTransactions(context.Context, *models.Proposal, *models.UnifiedSpendingKey) ([]models.TransactionSubmitResult, error) {
	f.creates.Add(1)
	return []models.TransactionSubmitResult{models.SubmitSuccess{ID: "shield-1"}}, nil
}

func (f *fakeSync) Rewind(context.Context) error {
	f.rewinds.Add(1)
	return nil
}

func (f *fakeSync) Close(context.Context) error {
	f.closes.Add(1)
	return nil
}

type testEnv struct {
	o     *Orchestrator
	store *storage.MemoryWalletStore
	tool  *derivation.Tool
	reg   *prometheus.Registry
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	h := backend.NewHandle(software.Loader)
	require.NoError(t, h.Init(context.Background()))
	t.Cleanup(func() { _ = h.Shutdown() })

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	tool := derivation.New(h, derivation.WithMetrics(m))
	store := storage.NewMemoryWalletStore()
	o := New(cfg, store, tool, m)
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	return &testEnv{o: o, store: store, tool: tool, reg: reg}
}

func testWallet(t *testing.T) *models.PersistableWallet {
	t.Helper()
	p, err := models.NewSeedPhrase(testPhrase)
	require.NoError(t, err)
	return &models.PersistableWallet{
		Network:  models.NetworkTestnet,
		Endpoint: "lightwalletd.testnet:9067",
		Birthday: 1_000,
		Seed:     models.SeedFromPhrase(p),
		InitMode: models.WalletInitRestore,
	}
}

func (e *testEnv) loadWallet(t *testing.T) *models.PersistableWallet {
	t.Helper()
	w := testWallet(t)
	require.NoError(t, e.o.PersistExistingWallet(context.Background(), w))
	return w
}

func waitSendState[S SendState](t *testing.T, o *Orchestrator) S {
	t.Helper()
	var got S
	require.Eventually(t, func() bool {
		s, ok := o.SendState().(S)
		got = s
		return ok
	}, waitFor, tick, "send state is %v", o.SendState())
	return got
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

var testSend = models.ZecSend{Destination: "ztestsapling1recipient", Amount: 50_000}

func TestSecretState(t *testing.T) {
	store := storage.NewMemoryWalletStore()
	o := New(Config{}, store, nil, nil)
	assert.IsType(t, SecretLoading{}, o.SecretState())

	require.NoError(t, o.Start(context.Background()))
	assert.IsType(t, SecretNone{}, o.SecretState())

	_, err := o.Wallet()
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestPersistExistingWallet(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := env.loadWallet(t)

	ready, ok := env.o.SecretState().(SecretReady)
	require.True(t, ok)
	assert.Equal(t, w.Network, ready.Wallet.Network)
	assert.Equal(t, w.Birthday, ready.Wallet.Birthday)
	assert.True(t, w.Seed.Equal(ready.Wallet.Seed))
	assert.Equal(t, 1, env.store.Writes())
	assert.Equal(t, float64(1), counterValue(t, env.reg, "zwallet_persistence_writes_total"))

	// a fresh orchestrator over the same store sees the same secret
	other := New(Config{}, env.store, env.tool, nil)
	require.NoError(t, other.Start(context.Background()))
	again, ok := other.SecretState().(SecretReady)
	require.True(t, ok)
	assert.True(t, w.Seed.Equal(again.Wallet.Seed))

	assert.ErrorIs(t, env.o.PersistExistingWallet(context.Background(), nil), models.ErrValidation)
}

func TestPersistNewWallet(t *testing.T) {
	env := newTestEnv(t, Config{})
	w, err := env.o.PersistNewWallet(context.Background(), models.NetworkMainnet, "lightwalletd:9067", 0)
	require.NoError(t, err)

	phrase, ok := w.Seed.Phrase()
	require.True(t, ok)
	assert.Len(t, phrase.Words(), models.SeedPhraseSize)
	assert.Equal(t, models.NetworkMainnet.SaplingActivationHeight, w.Birthday)
	assert.Equal(t, models.WalletInitNew, w.InitMode)

	ready, ok := env.o.SecretState().(SecretReady)
	require.True(t, ok)
	assert.True(t, w.Seed.Equal(ready.Wallet.Seed))
}

// exclusiveStore fails the test when two calls overlap.
type exclusiveStore struct {
	storage.WalletStore
	t        *testing.T
	inFlight atomic.Int32
}

func (s *exclusiveStore) enter() {
	if s.inFlight.Add(1) > 1 {
		s.t.Error("store accessed concurrently")
	}
	time.Sleep(time.Millisecond)
}

func (s *exclusiveStore) Put(ctx context.Context, data []byte) error {
	s.enter()
	defer s.inFlight.Add(-1)
	return s.WalletStore.Put(ctx, data)
}

func (s *exclusiveStore) Get(ctx context.Context) ([]byte, error) {
	s.enter()
	defer s.inFlight.Add(-1)
	return s.WalletStore.Get(ctx)
}

func TestPersistIsSerialized(t *testing.T) {
	mem := storage.NewMemoryWalletStore()
	o := New(Config{}, &exclusiveStore{WalletStore: mem, t: t}, nil, nil)
	require.NoError(t, o.Start(context.Background()))

	const writers = 8
	w := testWallet(t)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.PersistExistingWallet(context.Background(), w))
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, mem.Writes())
	assert.IsType(t, SecretReady{}, o.SecretState())
}

type failingStore struct {
	getErr, putErr error
}

func (s failingStore) Put(context.Context, []byte) error { return s.putErr }

func (s failingStore) Get(context.Context) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return nil, storage.ErrNotFound
}

func TestPersistenceFailures(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		o := New(Config{}, failingStore{getErr: errBoom}, nil, nil)
		err := o.Start(context.Background())
		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.ErrorIs(t, err, errBoom)
		assert.IsType(t, SecretLoading{}, o.SecretState())
	})

	t.Run("write", func(t *testing.T) {
		o := New(Config{}, failingStore{putErr: errBoom}, nil, nil)
		require.NoError(t, o.Start(context.Background()))
		err := o.PersistExistingWallet(context.Background(), testWallet(t))
		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.ErrorIs(t, err, errBoom)
		assert.IsType(t, SecretNone{}, o.SecretState())
	})
}

func TestSpendingKey(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.o.SpendingKey(ctx)
	require.ErrorIs(t, err, ErrNoWallet)

	w := env.loadWallet(t)
	usk, err := env.o.SpendingKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AccountDefault, usk.Account())

	want, err := env.tool.DeriveUnifiedSpendingKey(ctx, nil, "", w.Seed, w.Network, models.AccountDefault)
	require.NoError(t, err)
	assert.True(t, want.Equal(usk))

	t.Run("with wif", func(t *testing.T) {
		w.WIF = testWIF
		require.NoError(t, env.o.PersistExistingWallet(ctx, w))

		withWIF, err := env.o.SpendingKey(ctx)
		require.NoError(t, err)
		assert.False(t, withWIF.Equal(usk))

		tkey, err := w.TransparentKey()
		require.NoError(t, err)
		want, err := env.tool.DeriveUnifiedSpendingKey(ctx, tkey, "", w.Seed, w.Network, models.AccountDefault)
		require.NoError(t, err)
		assert.True(t, want.Equal(withWIF))
	})
}

func TestAddresses(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.loadWallet(t)

	addrs, err := env.o.Addresses(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, "^utest1", addrs.Unified)
	assert.Regexp(t, "^ztestsapling1", addrs.Shielded)

	valid, err := env.tool.IsValidShieldedAddress(context.Background(), addrs.Shielded, models.NetworkTestnet)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSendSingleFlight(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.loadWallet(t)
	syn := newFakeSync()
	syn.release = make(chan struct{})
	require.NoError(t, env.o.OpenSession(context.Background(), syn))

	require.NoError(t, env.o.Send(testSend))
	assert.IsType(t, SendSending{}, env.o.SendState())

	second := testSend
	second.Amount = 60_000
	assert.ErrorIs(t, env.o.Send(second), models.ErrConcurrentOperation)
	assert.ErrorIs(t, env.o.Shield(), models.ErrConcurrentOperation)
	assert.ErrorIs(t, env.o.ClearSendState(), models.ErrConcurrentOperation)
	_, err := env.o.ProposeSend(context.Background(), testSend)
	assert.ErrorIs(t, err, models.ErrConcurrentOperation)

	close(syn.release)
	sent := waitSendState[SendSent](t, env.o)
	require.Len(t, sent.Results, 1)
	assert.Equal(t, "tx-1", sent.Results[0].TxID())
	assert.Equal(t, int32(1), syn.sends.Load())

	require.NoError(t, env.o.ClearSendState())
	assert.IsType(t, SendNone{}, env.o.SendState())
}

func TestSendConcurrentCallers(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.loadWallet(t)
	syn := newFakeSync()
	syn.release = make(chan struct{})
	require.NoError(t, env.o.OpenSession(context.Background(), syn))

	const callers = 16
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.o.Send(testSend); err == nil {
				accepted.Add(1)
			} else {
				assert.ErrorIs(t, err, models.ErrConcurrentOperation)
			}
		}()
	}
	wg.Wait()
	close(syn.release)

	waitSendState[SendSent](t, env.o)
	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(1), syn.sends.Load())
}

func TestSendFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.loadWallet(t)
	syn := newFakeSync()
	syn.sendErr = errBoom
	require.NoError(t, env.o.OpenSession(context.Background(), syn))

	require.NoError(t, env.o.Send(testSend))
	failed := waitSendState[SendError](t, env.o)
	assert.ErrorIs(t, failed.Err, errBoom)

	// a failed episode does not block the next one
	syn.mu.Lock()
	syn.sendErr = nil
	syn.mu.Unlock()
	require.NoError(t, env.o.Send(testSend))
	waitSendState[SendSent](t, env.o)
}

func TestSendWithoutSession(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.loadWallet(t)

	err := env.o.Send(testSend)
	require.ErrorIs(t, err, ErrNoSession)
	failed, ok := env.o.SendState().(SendError)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, ErrNoSession)

	assert.ErrorIs(t, env.o.Shield(), ErrNoSession)
}

func TestSendWithoutWallet(t *testing.T) {
	env := newTestEnv(t, Config{})
	require.NoError(t, env.o.OpenSession(context.Background(), newFakeSync()))

	require.NoError(t, env.o.Send(testSend))
	failed := waitSendState[SendError](t, env.o)
	assert.ErrorIs(t, failed.Err, ErrNoWallet)
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t, Config{})
	err := env.o.Send(models.ZecSend{Destination: "ztestsapling1x"})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.IsType(t, SendNone{}, env.o.SendState())
}

func TestShield(t *testing.T) {
	t.Run("nothing to shield", func(t *testing.T) {
		env := newTestEnv(t, Config{ShieldingThreshold: 250_000})
		env.loadWallet(t)
		syn := newFakeSync()
		require.NoError(t, env.o.OpenSession(context.Background(), syn))

		require.NoError(t, env.o.Shield())
		sent := waitSendState[SendSent](t, env.o)
		assert.Empty(t, sent.Results)
		assert.Equal(t, int32(0), syn.creates.Load())

		syn.mu.Lock()
		defer syn.mu.Unlock()
		assert.Equal(t, models.Zatoshi(250_000), syn.threshold)
	})

	t.Run("proposal submitted", func(t *testing.T) {
		env := newTestEnv(t, Config{})
		env.loadWallet(t)
		syn := newFakeSync()
		syn.shieldProposal = &models.Proposal{TransactionCount: 1, TotalFee: 15_000}
		require.NoError(t, env.o.OpenSession(context.Background(), syn))

		require.NoError(t, env.o.Shield())
		sent := waitSendState[SendSent](t, env.o)
		require.Len(t, sent.Results, 1)
		assert.Equal(t, "shield-1", sent.Results[0].TxID())
		assert.Equal(t, int32(1), syn.creates.Load())

		syn.mu.Lock()
		defer syn.mu.Unlock()
		assert.Equal(t, models.Zatoshi(100_000), syn.threshold)
	})
}

func TestProposeSend(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.o.ProposeSend(ctx, testSend)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, env.o.OpenSession(ctx, newFakeSync()))
	p, err := env.o.ProposeSend(ctx, testSend)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TransactionCount)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	syn := newFakeSync()

	assert.ErrorIs(t, env.o.Rewind(ctx), ErrNoSession)
	require.NoError(t, env.o.CloseSession(ctx))

	require.NoError(t, env.o.OpenSession(ctx, syn))
	assert.NotEmpty(t, env.o.SessionID())
	assert.ErrorIs(t, env.o.OpenSession(ctx, newFakeSync()), ErrSessionActive)

	require.NoError(t, env.o.Rewind(ctx))
	assert.Equal(t, int32(1), syn.rewinds.Load())

	require.NoError(t, env.o.CloseSession(ctx))
	assert.Equal(t, int32(1), syn.closes.Load())
	assert.Empty(t, env.o.SessionID())
	assert.Nil(t, env.o.Snapshot())
	for _, kind := range synchronizer.ErrorKinds {
		assert.False(t, syn.ErrorSlot(kind).Subscribed(), kind.String())
	}

	// the released slots can be taken again
	require.NoError(t, env.o.OpenSession(ctx, syn))
}

func TestCloseSessionCancelsInFlightSend(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.loadWallet(t)
	syn := newFakeSync()
	syn.release = make(chan struct{})
	require.NoError(t, env.o.OpenSession(context.Background(), syn))

	require.NoError(t, env.o.Send(testSend))
	require.Eventually(t, func() bool { return syn.sends.Load() == 1 }, waitFor, tick)

	require.NoError(t, env.o.CloseSession(context.Background()))
	failed, ok := env.o.SendState().(SendError)
	require.True(t, ok, "send state is %v", env.o.SendState())
	assert.ErrorIs(t, failed.Err, context.Canceled)
}

func TestSecondAggregatorFails(t *testing.T) {
	syn := newFakeSync()
	first := newTestEnv(t, Config{})
	second := newTestEnv(t, Config{})

	require.NoError(t, first.o.OpenSession(context.Background(), syn))
	err := second.o.OpenSession(context.Background(), syn)
	require.ErrorIs(t, err, flow.ErrSlotTaken)
	assert.Empty(t, second.o.SessionID())

	t.Run("partial subscription is released", func(t *testing.T) {
		other := newFakeSync()
		_, unsubscribe, err := other.ReorgSlot().Subscribe()
		require.NoError(t, err)
		defer unsubscribe()

		require.ErrorIs(t, second.o.OpenSession(context.Background(), other), flow.ErrSlotTaken)
		for _, kind := range synchronizer.ErrorKinds {
			assert.False(t, other.ErrorSlot(kind).Subscribed(), kind.String())
		}
	})
}

func TestErrorAggregation(t *testing.T) {
	env := newTestEnv(t, Config{})
	syn := newFakeSync()
	require.NoError(t, env.o.OpenSession(context.Background(), syn))
	assert.Nil(t, env.o.SynchronizerError())

	require.True(t, syn.ReportError(synchronizer.KindProcessor, errBoom))
	require.Eventually(t, func() bool {
		e := env.o.SynchronizerError()
		return e != nil && e.Kind == synchronizer.KindProcessor
	}, waitFor, tick)
	e := env.o.SynchronizerError()
	assert.ErrorIs(t, e, synchronizer.ErrProcessor)
	assert.ErrorIs(t, e, errBoom)
	assert.Equal(t, "boom", e.CauseMessage())

	require.True(t, syn.ReportReorg(synchronizer.Reorg{X: 5, Y: 9}))
	require.Eventually(t, func() bool {
		e := env.o.SynchronizerError()
		return e != nil && e.Kind == synchronizer.KindChain
	}, waitFor, tick)
	e = env.o.SynchronizerError()
	assert.ErrorIs(t, e, synchronizer.ErrChainReorg)
	assert.Equal(t, "5, 9", e.CauseMessage())

	assert.Equal(t, float64(2), counterValue(t, env.reg, "zwallet_synchronizer_errors_total"))
}

func TestSnapshotComposition(t *testing.T) {
	env := newTestEnv(t, Config{SnapshotThrottle: 10 * time.Millisecond})
	syn := newFakeSync()
	require.NoError(t, env.o.OpenSession(context.Background(), syn))

	require.Eventually(t, func() bool { return env.o.Snapshot() != nil }, waitFor, tick)
	first := env.o.Snapshot()
	assert.Equal(t, synchronizer.StatusStopped, first.Status)
	assert.Equal(t, models.WalletBalance{}, first.OrchardBalance)
	assert.Equal(t, models.WalletBalance{}, first.SaplingBalance)
	assert.Equal(t, models.Zatoshi(0), first.TransparentBalance)
	assert.Nil(t, first.SynchronizerError)

	transparent := models.Zatoshi(7)
	syn.OrchardValue.Set(&models.WalletBalance{Available: 5})
	syn.SaplingValue.Set(&models.WalletBalance{Available: 1, ChangePending: 2})
	syn.TransparentValue.Set(&transparent)
	syn.ProgressValue.Set(models.OneHundredPercent)
	syn.ProcessorValue.Set(synchronizer.ProcessorInfo{NetworkBlockHeight: 100, LastSyncedHeight: 100})
	syn.StatusValue.Set(synchronizer.StatusSynced)
	syn.ReportError(synchronizer.KindSetup, errBoom)

	require.Eventually(t, func() bool {
		s := env.o.Snapshot()
		return s.Status == synchronizer.StatusSynced &&
			s.TotalBalance() == 15 &&
			s.Progress == models.OneHundredPercent &&
			s.ProcessorInfo.LastSyncedHeight == 100 &&
			s.SynchronizerError != nil
	}, waitFor, tick)
	assert.Equal(t, synchronizer.KindSetup, env.o.Snapshot().SynchronizerError.Kind)

	// balances going back to unknown are reported as zero
	syn.OrchardValue.Set(nil)
	require.Eventually(t, func() bool {
		return env.o.Snapshot().OrchardBalance == models.WalletBalance{}
	}, waitFor, tick)
}

func TestSnapshotThrottled(t *testing.T) {
	env := newTestEnv(t, Config{SnapshotThrottle: 200 * time.Millisecond})
	syn := newFakeSync()
	require.NoError(t, env.o.OpenSession(context.Background(), syn))
	require.Eventually(t, func() bool { return env.o.Snapshot() != nil }, waitFor, tick)

	for i := 1; i <= 50; i++ {
		syn.ProgressValue.Set(models.PercentDecimal(float32(i) / 50))
	}
	time.Sleep(250 * time.Millisecond)
	assert.LessOrEqual(t, counterValue(t, env.reg, "zwallet_snapshots_emitted_total"), float64(3))

	require.Eventually(t, func() bool {
		return env.o.Snapshot().Progress == models.OneHundredPercent
	}, waitFor, tick)
}

func TestCloseSessionDuringThrottleWait(t *testing.T) {
	env := newTestEnv(t, Config{SnapshotThrottle: 3 * time.Second})
	syn := newFakeSync()
	require.NoError(t, env.o.OpenSession(context.Background(), syn))
	require.Eventually(t, func() bool { return env.o.Snapshot() != nil }, waitFor, tick)

	// the next snapshot is held back by the throttle
	syn.ProgressValue.Set(models.PercentDecimal(0.5))
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, env.o.CloseSession(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, env.o.Snapshot())
}

// chainFetcher serves blocks 1..len(hashes).
type chainFetcher struct {
	mu     sync.Mutex
	hashes []string
}

func (c *chainFetcher) LatestBlockHeight(context.Context) (models.BlockHeight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.BlockHeight(len(c.hashes)), nil
}

func (c *chainFetcher) GetBlock(_ context.Context, h models.BlockHeight) (*synchronizer.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h == 0 || int(h) > len(c.hashes) {
		return nil, errors.New("no such block")
	}
	return &synchronizer.Block{Height: h, Hash: c.hashes[h-1]}, nil
}

func (c *chainFetcher) set(hashes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes = hashes
}

func TestSessionReorgDetection(t *testing.T) {
	env := newTestEnv(t, Config{ReorgPollInterval: 10 * time.Millisecond})
	syn := newFakeSync()
	chain := &chainFetcher{}
	chain.set("a1", "a2", "a3", "a4", "a5")

	require.NoError(t, env.o.OpenSession(context.Background(), syn,
		WithReorgDetection(chain),
	))
	// let the detector track the first branch
	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, env.o.SynchronizerError())

	chain.set("a1", "a2", "b3", "b4", "b5", "b6")
	require.Eventually(t, func() bool {
		e := env.o.SynchronizerError()
		return e != nil && e.Kind == synchronizer.KindChain
	}, waitFor, tick)
	assert.Equal(t, synchronizer.Reorg{X: 3, Y: 6}, env.o.SynchronizerError().Reorg)

	require.NoError(t, env.o.CloseSession(context.Background()))
}
