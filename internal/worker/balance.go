package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"creditbook/internal/model"
	"creditbook/internal/service"
)

// BalanceRefresher is the slice of the service the worker needs.
type BalanceRefresher interface {
	RefreshBalance(ctx context.Context, shopID, customerID string) error
}

// BalanceWorker consumes the transactions.created feed and replaces
// the cached balance summary for the affected (shop, customer) pair.
// Each event triggers a full recompute from the durable store; the
// new snapshot replaces the old one wholesale.
type BalanceWorker struct {
	svc      BalanceRefresher
	natsConn *nats.Conn
	log      *zap.Logger
}

func NewBalanceWorker(svc BalanceRefresher, nc *nats.Conn, log *zap.Logger) *BalanceWorker {
	return &BalanceWorker{svc: svc, natsConn: nc, log: log.Named("worker.balance")}
}

// Start subscribes to the feed and blocks until ctx is cancelled.
// QueueSubscribe keeps the refresh exactly-once per event across
// multiple running instances.
func (w *BalanceWorker) Start(ctx context.Context) error {
	sub, err := w.natsConn.QueueSubscribe(service.TopicTransactionsCreated, "balance_workers", func(m *nats.Msg) {
		if err := w.handleEvent(ctx, m.Data); err != nil {
			w.log.Error("balance refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to feed: %w", err)
	}

	w.log.Info("balance worker running")

	<-ctx.Done()
	w.log.Info("balance worker shutting down, draining subscription")
	return sub.Drain()
}

func (w *BalanceWorker) Stop(ctx context.Context) error {
	return nil
}

// handleEvent refreshes one cached summary, retrying transient store
// or cache failures with backoff. A refresh that keeps failing is
// dropped; the next read miss recomputes the same value.
func (w *BalanceWorker) handleEvent(ctx context.Context, data []byte) error {
	var event model.TransactionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal feed event: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := w.svc.RefreshBalance(ctx, event.ShopID, event.CustomerID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
