// internal/ledger/client.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	defaultSignatureLimit = 50
	maxListTries          = 3
)

// Client reads inbound transfers for one receiving address over a list
// of RPC endpoints, rotating to the next endpoint on failure.
type Client struct {
	rpcClients []*rpc.Client
	urls       []string
	receiving  solana.PublicKey
	logger     *zap.Logger

	mu     sync.Mutex
	active int
}

func NewClient(rpcURLs []string, receivingAddress string, logger *zap.Logger) (*Client, error) {
	if len(rpcURLs) == 0 {
		return nil, errors.New("empty RPC URL list")
	}

	receiving, err := solana.PublicKeyFromBase58(receivingAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid receiving address: %w", err)
	}

	var clients []*rpc.Client
	var urls []string
	for _, urlStr := range rpcURLs {
		if _, err := url.Parse(urlStr); err != nil {
			logger.Warn("Invalid RPC URL", zap.String("url", urlStr), zap.Error(err))
			continue
		}
		clients = append(clients, rpc.New(urlStr))
		urls = append(urls, urlStr)
	}

	if len(clients) == 0 {
		return nil, errors.New("no valid RPC URLs provided")
	}

	return &Client{
		rpcClients: clients,
		urls:       urls,
		receiving:  receiving,
		logger:     logger.Named("ledger"),
	}, nil
}

func (c *Client) client() (*rpc.Client, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rpcClients[c.active], c.urls[c.active]
}

func (c *Client) rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = (c.active + 1) % len(c.rpcClients)
	c.logger.Warn("Rotating RPC endpoint", zap.String("url", c.urls[c.active]))
}

// RecentIncoming returns recent inbound transfers to the receiving
// address, newest first. Transfers without a memo or without a positive
// balance change for the receiving account are dropped.
func (c *Client) RecentIncoming(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultSignatureLimit
	}

	op := func() ([]*rpc.TransactionSignature, error) {
		client, _ := c.client()
		sigs, err := client.GetSignaturesForAddressWithOpts(ctx, c.receiving, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentFinalized,
		})
		if err != nil {
			c.rotate()
			return nil, err
		}
		return sigs, nil
	}

	signatures, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxListTries),
	)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}

	var txs []Transaction
	for _, sigInfo := range signatures {
		if sigInfo.Err != nil {
			continue
		}
		if sigInfo.BlockTime == nil || *sigInfo.BlockTime == 0 {
			// Not yet finalized into a block.
			continue
		}

		tx, err := c.resolveTransaction(ctx, sigInfo)
		if err != nil {
			c.logger.Debug("Skipping unresolvable transaction",
				zap.String("signature", sigInfo.Signature.String()),
				zap.Error(err))
			continue
		}
		if tx != nil {
			txs = append(txs, *tx)
		}
	}

	return txs, nil
}

// resolveTransaction fetches the full transaction and extracts the
// inbound amount, sender and memo. Returns (nil, nil) for transactions
// that are not inbound transfers with a memo.
func (c *Client) resolveTransaction(ctx context.Context, sigInfo *rpc.TransactionSignature) (*Transaction, error) {
	client, _ := c.client()

	maxVersion := uint64(0)
	result, err := client.GetTransaction(ctx, sigInfo.Signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentFinalized,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if result == nil || result.Meta == nil || result.Transaction == nil {
		return nil, nil
	}

	decoded, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	accountIndex := -1
	for i, key := range decoded.Message.AccountKeys {
		if key.Equals(c.receiving) {
			accountIndex = i
			break
		}
	}
	if accountIndex < 0 {
		return nil, nil
	}
	if accountIndex >= len(result.Meta.PreBalances) || accountIndex >= len(result.Meta.PostBalances) {
		return nil, nil
	}

	pre := result.Meta.PreBalances[accountIndex]
	post := result.Meta.PostBalances[accountIndex]
	if post <= pre {
		// Not an inbound transfer.
		return nil, nil
	}
	lamports := post - pre

	memo := extractMemo(sigInfo, result.Meta.LogMessages)
	if memo == "" {
		return nil, nil
	}

	if len(decoded.Message.AccountKeys) == 0 {
		return nil, nil
	}
	sender := decoded.Message.AccountKeys[0].String()

	blockTime := time.Unix(int64(*sigInfo.BlockTime), 0).UTC()

	return &Transaction{
		Hash:      sigInfo.Signature.String(),
		Amount:    float64(lamports) / float64(solana.LAMPORTS_PER_SOL),
		Sender:    sender,
		Memo:      memo,
		BlockTime: blockTime,
	}, nil
}

// extractMemo prefers the memo reported with the signature listing and
// falls back to scanning the memo program's log lines.
func extractMemo(sigInfo *rpc.TransactionSignature, logMessages []string) string {
	if sigInfo.Memo != nil {
		return stripMemoPrefix(*sigInfo.Memo)
	}

	for _, logMsg := range logMessages {
		if strings.Contains(logMsg, "Program log: Memo") {
			start := strings.Index(logMsg, "\"")
			end := strings.LastIndex(logMsg, "\"")
			if start >= 0 && end > start {
				return strings.TrimSpace(logMsg[start+1 : end])
			}
		}
	}
	return ""
}

// stripMemoPrefix removes the "[len] " length marker the RPC node adds
// to memo text in signature listings.
func stripMemoPrefix(memo string) string {
	trimmed := strings.TrimSpace(memo)
	if strings.HasPrefix(trimmed, "[") {
		if idx := strings.Index(trimmed, "] "); idx >= 0 {
			trimmed = trimmed[idx+2:]
		}
	}
	return strings.TrimSpace(trimmed)
}
