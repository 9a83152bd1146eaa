// internal/payment/monitor.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adwave/ads-bot/internal/events"
	"github.com/adwave/ads-bot/internal/ledger"
	"github.com/adwave/ads-bot/internal/metrics"
	"github.com/adwave/ads-bot/internal/storage"
	"github.com/adwave/ads-bot/internal/storage/models"
	"go.uber.org/zap"
)

const (
	// FailureTimeout is passed to the failure callback when the ttl
	// elapses with no matching transaction.
	FailureTimeout = "timeout"
	// FailureFraudBlocked is passed when the wallet ownership gate
	// blocked the request terminally.
	FailureFraudBlocked = "fraud_blocked"

	defaultPollInterval = 30 * time.Second
	scanBatchLimit      = 50
)

// SuccessFunc is invoked exactly once when a transaction settles the request.
type SuccessFunc func(ctx context.Context, req *models.PaymentRequest, tx *ledger.Transaction)

// FailureFunc is invoked exactly once when the request terminates unmatched.
type FailureFunc func(ctx context.Context, req *models.PaymentRequest, reason string)

// EventBus is the subset of the event bus the monitor publishes to.
type EventBus interface {
	Publish(event events.Event) error
}

// Alerter delivers out-of-band fraud alerts to the operator.
type Alerter interface {
	FraudAlert(ctx context.Context, req *models.PaymentRequest, ev *models.FraudEvent)
}

// Monitor owns a payment request's lifecycle from creation to
// confirmation or timeout. One polling session per outstanding request;
// sessions share no state beyond the store.
type Monitor struct {
	store        storage.Storage
	scanner      ledger.Scanner
	matcher      *Matcher
	bus          EventBus
	alerter      Alerter
	metrics      *metrics.Metrics
	logger       *zap.Logger
	pollInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// MonitorConfig wires the monitor's collaborators.
type MonitorConfig struct {
	Store        storage.Storage
	Scanner      ledger.Scanner
	Matcher      *Matcher
	Bus          EventBus
	Alerter      Alerter
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	PollInterval time.Duration
}

func NewMonitor(cfg *MonitorConfig) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Monitor{
		store:        cfg.Store,
		scanner:      cfg.Scanner,
		matcher:      cfg.Matcher,
		bus:          cfg.Bus,
		alerter:      cfg.Alerter,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.Named("payment_monitor"),
		pollInterval: interval,
		sessions:     make(map[string]*session),
	}
}

// Start begins polling the ledger for a transaction settling req. It
// returns an error if the request is already monitored or terminal.
func (m *Monitor) Start(ctx context.Context, req *models.PaymentRequest, onSuccess SuccessFunc, onFailure FailureFunc) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}
	if req.Terminal() {
		return fmt.Errorf("payment %s is already %s", req.PaymentID, req.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[req.PaymentID]; exists {
		return fmt.Errorf("payment %s is already monitored", req.PaymentID)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.sessions[req.PaymentID] = sess

	m.logger.Info("Monitoring started",
		zap.String("payment_id", req.PaymentID),
		zap.String("memo", req.Memo),
		zap.Time("expires_at", req.ExpiresAt))

	m.wg.Add(1)
	go m.run(sessCtx, sess, req, onSuccess, onFailure)

	return nil
}

// Cancel stops a monitoring session cooperatively. Unknown payment ids
// are a no-op, so repeated cancellation is safe.
func (m *Monitor) Cancel(paymentID string) {
	m.mu.Lock()
	sess, exists := m.sessions[paymentID]
	m.mu.Unlock()

	if !exists {
		return
	}

	sess.cancel()
	<-sess.done
	m.logger.Info("Monitoring cancelled", zap.String("payment_id", paymentID))
}

// Active reports whether a monitoring session exists for the payment.
func (m *Monitor) Active(paymentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.sessions[paymentID]
	return exists
}

// Shutdown cancels all sessions and waits for them to drain.
func (m *Monitor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.logger.Info("Shutting down payment monitor", zap.Int("active_sessions", len(m.sessions)))
	for _, sess := range m.sessions {
		sess.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("Payment monitor shutdown timeout")
		return ctx.Err()
	}
}

func (m *Monitor) removeSession(paymentID string, sess *session) {
	m.mu.Lock()
	delete(m.sessions, paymentID)
	m.mu.Unlock()
	close(sess.done)
}

// run is one session's polling loop. The ttl is a hard wall-clock
// deadline independent of how many polls actually happened; scanner
// errors are retried on the next tick.
func (m *Monitor) run(ctx context.Context, sess *session, req *models.PaymentRequest, onSuccess SuccessFunc, onFailure FailureFunc) {
	defer m.wg.Done()
	defer m.removeSession(req.PaymentID, sess)

	logger := m.logger.With(zap.String("payment_id", req.PaymentID))

	ttlTimer := time.NewTimer(time.Until(req.ExpiresAt))
	defer ttlTimer.Stop()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	// Transactions already reported as suspicious, so one spoofed
	// transfer does not flood the audit trail on every poll.
	reported := make(map[string]bool)

	// First check runs immediately; later ones on the ticker.
	if done := m.poll(ctx, req, reported, onSuccess, onFailure, logger); done {
		return
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Monitoring session cancelled")
			return
		case <-ttlTimer.C:
			m.expire(ctx, req, onFailure, logger)
			return
		case <-ticker.C:
			if done := m.poll(ctx, req, reported, onSuccess, onFailure, logger); done {
				return
			}
		}
	}
}

// poll pulls recent transactions and tests each candidate. Returns true
// once the session reached a terminal outcome.
func (m *Monitor) poll(ctx context.Context, req *models.PaymentRequest, reported map[string]bool, onSuccess SuccessFunc, onFailure FailureFunc, logger *zap.Logger) bool {
	txs, err := m.scanner.RecentIncoming(ctx, scanBatchLimit)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		logger.Warn("Ledger scan failed, retrying next tick", zap.Error(err))
		return false
	}

	now := time.Now().UTC()
	for i := range txs {
		tx := txs[i]
		switch m.matcher.Match(req, tx, now) {
		case MatchConfirmed:
			// A failed persist keeps the session alive; the same
			// transaction confirms on the next tick.
			return m.confirm(ctx, req, &tx, onSuccess, logger)

		case MatchWalletMismatch:
			m.blockFraud(ctx, req, &tx, onFailure, logger)
			return true

		case MatchAmountMismatch:
			if !reported[tx.Hash] {
				reported[tx.Hash] = true
				m.recordFraud(ctx, req, &tx, models.RiskLevelMedium, logger)
			}

		case MatchNone, MatchStale:
			// Irrelevant to this request.
		}
	}

	return false
}

// confirm persists the settlement and fires the success callback. It
// reports whether the session is done; a store error leaves the request
// pending so the next poll retries.
func (m *Monitor) confirm(ctx context.Context, req *models.PaymentRequest, tx *ledger.Transaction, onSuccess SuccessFunc, logger *zap.Logger) bool {
	if err := m.store.UpdatePaymentStatus(ctx, req.PaymentID, models.PaymentStatusConfirmed, tx.Hash); err != nil {
		logger.Error("Failed to persist confirmation, retrying next tick", zap.Error(err))
		return false
	}
	req.Status = models.PaymentStatusConfirmed
	req.TxHash = tx.Hash

	logger.Info("Payment confirmed",
		zap.String("tx_hash", tx.Hash),
		zap.Float64("amount", tx.Amount))

	m.metrics.PaymentsConfirmed.Inc()
	_ = m.bus.Publish(&events.PaymentConfirmedEvent{
		BaseEvent: events.BaseEvent{EventType: events.PaymentConfirmed, EventTime: time.Now()},
		PaymentID: req.PaymentID,
		UserID:    req.UserID,
		Amount:    tx.Amount,
		TxHash:    tx.Hash,
	})

	if onSuccess != nil {
		onSuccess(ctx, req, tx)
	}
	return true
}

func (m *Monitor) expire(ctx context.Context, req *models.PaymentRequest, onFailure FailureFunc, logger *zap.Logger) {
	if err := m.store.UpdatePaymentStatus(ctx, req.PaymentID, models.PaymentStatusExpired, ""); err != nil {
		logger.Error("Failed to persist expiry", zap.Error(err))
	}
	req.Status = models.PaymentStatusExpired

	logger.Info("Payment request expired", zap.String("memo", req.Memo))

	m.metrics.PaymentsExpired.Inc()
	_ = m.bus.Publish(&events.PaymentTimedOutEvent{
		BaseEvent: events.BaseEvent{EventType: events.PaymentTimedOut, EventTime: time.Now()},
		PaymentID: req.PaymentID,
		UserID:    req.UserID,
	})

	if onFailure != nil {
		onFailure(ctx, req, FailureTimeout)
	}
}

// blockFraud handles the mandatory wallet gate: the request is blocked
// terminally, the event is recorded, and the operator is alerted. This
// path must never downgrade to a warning.
func (m *Monitor) blockFraud(ctx context.Context, req *models.PaymentRequest, tx *ledger.Transaction, onFailure FailureFunc, logger *zap.Logger) {
	ev := m.recordFraud(ctx, req, tx, models.RiskLevelHigh, logger)

	if err := m.store.UpdatePaymentStatus(ctx, req.PaymentID, models.PaymentStatusFraudBlocked, ""); err != nil {
		logger.Error("Failed to persist fraud block", zap.Error(err))
	}
	req.Status = models.PaymentStatusFraudBlocked

	if m.alerter != nil {
		m.alerter.FraudAlert(ctx, req, ev)
	}

	if onFailure != nil {
		onFailure(ctx, req, FailureFraudBlocked)
	}
}

func (m *Monitor) recordFraud(ctx context.Context, req *models.PaymentRequest, tx *ledger.Transaction, riskLevel string, logger *zap.Logger) *models.FraudEvent {
	ev := &models.FraudEvent{
		TxHash:         tx.Hash,
		ExpectedMemo:   req.Memo,
		ExpectedWallet: req.PayerWallet,
		ObservedWallet: tx.Sender,
		RiskLevel:      riskLevel,
	}
	if err := m.store.SaveFraudEvent(ctx, ev); err != nil {
		logger.Error("Failed to record fraud event", zap.Error(err))
	}

	logger.Warn("Fraud event recorded",
		zap.String("tx_hash", tx.Hash),
		zap.String("risk_level", riskLevel),
		zap.String("observed_wallet", tx.Sender))

	m.metrics.FraudEvents.Inc()
	_ = m.bus.Publish(&events.FraudDetectedEvent{
		BaseEvent:      events.BaseEvent{EventType: events.FraudDetected, EventTime: time.Now()},
		PaymentID:      req.PaymentID,
		TxHash:         tx.Hash,
		ExpectedWallet: req.PayerWallet,
		ObservedWallet: tx.Sender,
		RiskLevel:      riskLevel,
	})

	return ev
}
