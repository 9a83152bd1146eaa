// internal/payment/monitor_test.go
package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/adwave/ads-bot/internal/events"
	"github.com/adwave/ads-bot/internal/ledger"
	"github.com/adwave/ads-bot/internal/metrics"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/memory"
	"github.com/adwave/ads-bot/internal/storage/models"
)

type fakeScanner struct {
	mu  sync.Mutex
	txs []ledger.Transaction
	err error
}

func (f *fakeScanner) RecentIncoming(_ context.Context, _ int) ([]ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ledger.Transaction, len(f.txs))
	copy(out, f.txs)
	return out, nil
}

func (f *fakeScanner) set(txs []ledger.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = txs
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeBus) Publish(event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls int
	last  *models.FraudEvent
}

func (f *fakeAlerter) FraudAlert(_ context.Context, _ *models.PaymentRequest, ev *models.FraudEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = ev
}

// flakyStore fails the first UpdatePaymentStatus calls, then delegates.
type flakyStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) UpdatePaymentStatus(ctx context.Context, paymentID, status, txHash string) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.UpdatePaymentStatus(ctx, paymentID, status, txHash)
}

func newTestMonitor(t *testing.T, store storage.Storage, scanner ledger.Scanner, alerter Alerter) *Monitor {
	t.Helper()
	return NewMonitor(&MonitorConfig{
		Store:        store,
		Scanner:      scanner,
		Matcher:      NewMatcher(0.01, 30*time.Minute, zaptest.NewLogger(t)),
		Bus:          &fakeBus{},
		Alerter:      alerter,
		Metrics:      metrics.New(),
		Logger:       zaptest.NewLogger(t),
		PollInterval: 10 * time.Millisecond,
	})
}

func pendingRequest(t *testing.T, store *memory.Store, memo string, amount float64, payerWallet string, ttl time.Duration) *models.PaymentRequest {
	t.Helper()
	now := time.Now().UTC()
	req := &models.PaymentRequest{
		PaymentID:   "pay-" + memo,
		UserID:      42,
		Memo:        memo,
		Amount:      amount,
		Currency:    "SOL",
		PayerWallet: payerWallet,
		Status:      models.PaymentStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	require.NoError(t, store.SavePaymentRequest(context.Background(), req))
	return req
}

func TestMonitorConfirmsMatchingTransaction(t *testing.T) {
	store := memory.NewStore()
	payer := walletAddr(1)
	scanner := &fakeScanner{txs: []ledger.Transaction{
		{Hash: "other", Memo: "ZZ0000", Amount: 9, Sender: payer, BlockTime: time.Now().UTC()},
		{Hash: "settle", Memo: "ab1234", Amount: 1.501, Sender: payer, BlockTime: time.Now().UTC()},
	}}
	mon := newTestMonitor(t, store, scanner, nil)

	req := pendingRequest(t, store, "AB1234", 1.5, payer, time.Minute)

	confirmed := make(chan *ledger.Transaction, 1)
	err := mon.Start(context.Background(), req, func(_ context.Context, _ *models.PaymentRequest, tx *ledger.Transaction) {
		confirmed <- tx
	}, nil)
	require.NoError(t, err)

	select {
	case tx := <-confirmed:
		assert.Equal(t, "settle", tx.Hash)
	case <-time.After(2 * time.Second):
		t.Fatal("payment was not confirmed")
	}

	stored, err := store.GetPaymentRequest(context.Background(), req.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, stored.Status)
	assert.Equal(t, "settle", stored.TxHash)

	require.NoError(t, mon.Shutdown(context.Background()))
	assert.False(t, mon.Active(req.PaymentID))
}

func TestMonitorTimeoutFiresExactlyOnce(t *testing.T) {
	store := memory.NewStore()
	scanner := &fakeScanner{}
	mon := newTestMonitor(t, store, scanner, nil)

	req := pendingRequest(t, store, "CD5678", 1, walletAddr(1), 50*time.Millisecond)

	var failures int32
	reasons := make(chan string, 4)
	err := mon.Start(context.Background(), req, nil, func(_ context.Context, _ *models.PaymentRequest, reason string) {
		atomic.AddInt32(&failures, 1)
		reasons <- reason
	})
	require.NoError(t, err)

	select {
	case reason := <-reasons:
		assert.Equal(t, FailureTimeout, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never fired")
	}

	// Give a stray second callback time to appear.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&failures))

	stored, err := store.GetPaymentRequest(context.Background(), req.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusExpired, stored.Status)
}

func TestMonitorWalletMismatchBlocksTerminally(t *testing.T) {
	store := memory.NewStore()
	payer := walletAddr(1)
	stranger := walletAddr(2)
	scanner := &fakeScanner{txs: []ledger.Transaction{
		{Hash: "spoof", Memo: "EF1111", Amount: 2, Sender: stranger, BlockTime: time.Now().UTC()},
	}}
	alerter := &fakeAlerter{}
	mon := newTestMonitor(t, store, scanner, alerter)

	req := pendingRequest(t, store, "EF1111", 2, payer, time.Minute)

	reasons := make(chan string, 1)
	confirmed := make(chan struct{}, 1)
	err := mon.Start(context.Background(), req, func(context.Context, *models.PaymentRequest, *ledger.Transaction) {
		confirmed <- struct{}{}
	}, func(_ context.Context, _ *models.PaymentRequest, reason string) {
		reasons <- reason
	})
	require.NoError(t, err)

	select {
	case reason := <-reasons:
		assert.Equal(t, FailureFraudBlocked, reason)
	case <-confirmed:
		t.Fatal("spoofed transfer must never confirm the payment")
	case <-time.After(2 * time.Second):
		t.Fatal("fraud block never fired")
	}

	stored, err := store.GetPaymentRequest(context.Background(), req.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFraudBlocked, stored.Status)

	frauds := store.FraudEvents()
	require.Len(t, frauds, 1)
	assert.Equal(t, models.RiskLevelHigh, frauds[0].RiskLevel)
	assert.Equal(t, "spoof", frauds[0].TxHash)
	assert.Equal(t, stranger, frauds[0].ObservedWallet)

	alerter.mu.Lock()
	assert.Equal(t, 1, alerter.calls)
	alerter.mu.Unlock()
}

func TestMonitorAmountMismatchRecordedOncePerTransaction(t *testing.T) {
	store := memory.NewStore()
	payer := walletAddr(1)
	scanner := &fakeScanner{txs: []ledger.Transaction{
		{Hash: "short", Memo: "GH2222", Amount: 0.5, Sender: payer, BlockTime: time.Now().UTC()},
	}}
	mon := newTestMonitor(t, store, scanner, nil)

	req := pendingRequest(t, store, "GH2222", 1, payer, time.Minute)
	require.NoError(t, mon.Start(context.Background(), req, nil, nil))

	// Let several polls run over the same suspicious transaction.
	time.Sleep(100 * time.Millisecond)

	frauds := store.FraudEvents()
	require.Len(t, frauds, 1)
	assert.Equal(t, models.RiskLevelMedium, frauds[0].RiskLevel)

	// A near-miss is not terminal; the session keeps scanning and a
	// later exact transfer still settles it.
	assert.True(t, mon.Active(req.PaymentID))

	scanner.set([]ledger.Transaction{
		{Hash: "exact", Memo: "GH2222", Amount: 1, Sender: payer, BlockTime: time.Now().UTC()},
	})

	require.Eventually(t, func() bool {
		stored, err := store.GetPaymentRequest(context.Background(), req.PaymentID)
		return err == nil && stored.Status == models.PaymentStatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, mon.Shutdown(context.Background()))
}

// A transient store error while persisting a confirmation must not end
// the session; the matched transaction settles on a later poll.
func TestMonitorRetriesConfirmationAfterStoreError(t *testing.T) {
	inner := memory.NewStore()
	store := &flakyStore{Store: inner, failures: 1}
	payer := walletAddr(1)
	scanner := &fakeScanner{txs: []ledger.Transaction{
		{Hash: "settle", Memo: "OP6666", Amount: 1, Sender: payer, BlockTime: time.Now().UTC()},
	}}
	mon := newTestMonitor(t, store, scanner, nil)

	req := pendingRequest(t, inner, "OP6666", 1, payer, time.Minute)

	var confirms int32
	err := mon.Start(context.Background(), req, func(context.Context, *models.PaymentRequest, *ledger.Transaction) {
		atomic.AddInt32(&confirms, 1)
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := inner.GetPaymentRequest(context.Background(), req.PaymentID)
		return err == nil && stored.Status == models.PaymentStatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&confirms))
	require.NoError(t, mon.Shutdown(context.Background()))
}

func TestMonitorCancelIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	mon := newTestMonitor(t, store, &fakeScanner{}, nil)

	req := pendingRequest(t, store, "IJ3333", 1, walletAddr(1), time.Minute)
	require.NoError(t, mon.Start(context.Background(), req, nil, nil))
	require.True(t, mon.Active(req.PaymentID))

	mon.Cancel(req.PaymentID)
	assert.False(t, mon.Active(req.PaymentID))

	// Second cancel and unknown ids are no-ops.
	mon.Cancel(req.PaymentID)
	mon.Cancel("never-existed")
}

func TestMonitorStartRejections(t *testing.T) {
	store := memory.NewStore()
	mon := newTestMonitor(t, store, &fakeScanner{}, nil)

	err := mon.Start(context.Background(), nil, nil, nil)
	assert.Error(t, err)

	terminal := pendingRequest(t, store, "KL4444", 1, walletAddr(1), time.Minute)
	terminal.Status = models.PaymentStatusConfirmed
	err = mon.Start(context.Background(), terminal, nil, nil)
	assert.Error(t, err)

	req := pendingRequest(t, store, "MN5555", 1, walletAddr(1), time.Minute)
	require.NoError(t, mon.Start(context.Background(), req, nil, nil))
	err = mon.Start(context.Background(), req, nil, nil)
	assert.Error(t, err)

	require.NoError(t, mon.Shutdown(context.Background()))
}
