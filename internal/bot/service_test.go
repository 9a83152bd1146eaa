// internal/bot/service_test.go
package bot

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/adwave/ads-bot/internal/campaign"
	"github.com/adwave/ads-bot/internal/events"
	"github.com/adwave/ads-bot/internal/ledger"
	"github.com/adwave/ads-bot/internal/locale"
	"github.com/adwave/ads-bot/internal/metrics"
	"github.com/adwave/ads-bot/internal/payment"
	"github.com/adwave/ads-bot/internal/storage/memory"
	"github.com/adwave/ads-bot/internal/storage/models"
)

const testFileID = "AgACAgIAAxkBAAIBY2Zt7x8AAbcdEFGH1234567890"

func testAddr(fill byte) string {
	return base58.Encode(bytes.Repeat([]byte{fill}, 32))
}

type scriptedScanner struct {
	mu  sync.Mutex
	txs []ledger.Transaction
}

func (s *scriptedScanner) RecentIncoming(context.Context, int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Transaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

func (s *scriptedScanner) settle(memo string, amount float64, sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, ledger.Transaction{
		Hash:      "tx-" + memo,
		Memo:      memo,
		Amount:    amount,
		Sender:    sender,
		BlockTime: time.Now().UTC(),
	})
}

type recordingMessenger struct {
	mu    sync.Mutex
	texts []string
	pngs  int
}

func (m *recordingMessenger) SendText(_ context.Context, _ int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return int64(len(m.texts)), nil
}

func (m *recordingMessenger) SendPhoto(context.Context, int64, string, string) (int64, error) {
	return 1, nil
}

func (m *recordingMessenger) SendVideo(context.Context, int64, string, string) (int64, error) {
	return 1, nil
}

func (m *recordingMessenger) SendPhotoUpload(_ context.Context, _ int64, png []byte, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pngs++
	return 1, nil
}

func (m *recordingMessenger) EditMessageText(context.Context, int64, int64, string) error {
	return nil
}

type staticTestProfiles struct{}

func (staticTestProfiles) GetUserLanguage(context.Context, int64) (string, error) { return "en", nil }

func newOrderFixture(t *testing.T, scanner ledger.Scanner) (*OrderService, *memory.Store, *recordingMessenger) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	met := metrics.New()
	messenger := &recordingMessenger{}

	matcher := payment.NewMatcher(0.01, 30*time.Minute, logger)
	monitor := payment.NewMonitor(&payment.MonitorConfig{
		Store:        store,
		Scanner:      scanner,
		Matcher:      matcher,
		Bus:          nopBus{},
		Metrics:      met,
		Logger:       logger,
		PollInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = monitor.Shutdown(context.Background()) })

	catalog := locale.NewCatalog()
	languages := locale.NewLanguageResolver(staticTestProfiles{}, logger)

	orders := NewOrderService(&OrderServiceConfig{
		Store:      store,
		Payments:   payment.NewService(store, testAddr(9), logger),
		Monitor:    monitor,
		Campaigns:  campaign.NewService(store, nopBus{}, met, logger),
		Messenger:  messenger,
		Localizer:  catalog,
		Languages:  languages,
		PaymentTTL: time.Minute,
		Logger:     logger,
	})
	return orders, store, messenger
}

type nopBus struct{}

func (nopBus) Publish(events.Event) error { return nil }

func TestPlaceOrderThroughSettlement(t *testing.T) {
	scanner := &scriptedScanner{}
	orders, store, messenger := newOrderFixture(t, scanner)

	payer := testAddr(1)
	req, err := orders.PlaceOrder(context.Background(), Order{
		UserID:       42,
		Amount:       1.5,
		PayerWallet:  payer,
		Text:         "spring sale",
		MediaRef:     testFileID,
		ContentType:  "text_photo",
		Channels:     []int64{-100, -200},
		DurationDays: 2,
		PostsPerDay:  1,
	})
	require.NoError(t, err)
	require.Len(t, req.Memo, 6)

	// Deposit instructions went out as a QR photo.
	messenger.mu.Lock()
	assert.Equal(t, 1, messenger.pngs)
	messenger.mu.Unlock()

	// The user pays with the right memo, amount and wallet.
	scanner.settle(req.Memo, 1.5, payer)

	require.Eventually(t, func() bool {
		_, err := store.GetCampaignByPayment(context.Background(), req.PaymentID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	camp, err := store.GetCampaignByPayment(context.Background(), req.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, 4, camp.TotalPosts())
	assert.Len(t, store.JobsForCampaign(camp.CampaignID), 4)

	stored, err := store.GetPaymentRequest(context.Background(), req.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, stored.Status)
}

func TestPlaceOrderRejectsInvalidContent(t *testing.T) {
	orders, _, _ := newOrderFixture(t, &scriptedScanner{})

	_, err := orders.PlaceOrder(context.Background(), Order{
		UserID:       42,
		Amount:       1,
		PayerWallet:  testAddr(1),
		ContentType:  "text",
		Channels:     []int64{-100},
		DurationDays: 1,
		PostsPerDay:  1,
	})
	assert.Error(t, err)
}

func TestPlaceOrderRejectsEmptySchedule(t *testing.T) {
	orders, _, _ := newOrderFixture(t, &scriptedScanner{})

	_, err := orders.PlaceOrder(context.Background(), Order{
		UserID:      42,
		Amount:      1,
		PayerWallet: testAddr(1),
		Text:        "hi",
		ContentType: "text",
	})
	assert.Error(t, err)
}
