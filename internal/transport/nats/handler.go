package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"creditbook/internal/model"
	"creditbook/internal/service"
)

// Handler subscribes to NATS command topics and delegates to the
// service. Commands are fire-and-forget: failures are logged, the
// caller retries by re-publishing.
type Handler struct {
	svc  service.Service
	nc   *nats.Conn
	log  *zap.Logger
	subs []*nats.Subscription
}

func NewHandler(svc service.Service, nc *nats.Conn, log *zap.Logger) *Handler {
	return &Handler{svc: svc, nc: nc, log: log.Named("nats")}
}

// Start subscribes to the command topics and blocks until ctx is
// cancelled, then drains the subscriptions so in-flight messages
// finish before shutdown.
func (h *Handler) Start(ctx context.Context) error {
	txSub, err := h.nc.QueueSubscribe("commands.transaction", "creditbook", func(m *nats.Msg) {
		var req model.CreateTransactionRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			h.log.Error("unmarshal transaction command", zap.Error(err))
			return
		}
		if _, err := h.svc.CreateTransaction(ctx, req); err != nil {
			h.log.Error("transaction command failed",
				zap.String("shop_id", req.ShopID),
				zap.String("customer_id", req.CustomerID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, txSub)

	joinSub, err := h.nc.QueueSubscribe("commands.join", "creditbook", func(m *nats.Msg) {
		var req struct {
			Link       string `json:"link"`
			CustomerID string `json:"customer_id"`
		}
		if err := json.Unmarshal(m.Data, &req); err != nil {
			h.log.Error("unmarshal join command", zap.Error(err))
			return
		}
		if _, err := h.svc.JoinShop(ctx, req.Link, req.CustomerID); err != nil {
			h.log.Error("join command failed",
				zap.String("link", req.Link),
				zap.String("customer_id", req.CustomerID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, joinSub)

	h.log.Info("command handler running")

	<-ctx.Done()
	h.log.Info("command handler shutting down, draining subscriptions")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
