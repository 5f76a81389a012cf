package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"creditbook/internal/ledger"
	"creditbook/internal/model"
	"creditbook/internal/repository"
)

var (
	ErrShopNotFound     = errors.New("shop not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidLink      = errors.New("shop link must not be empty")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidType      = errors.New("unknown entry type")
	ErrLinkTaken        = errors.New("shop link already in use")
	ErrInvalidRequest   = errors.New("missing required field")
)

// Service defines the business operations of the credit book.
// All transport layers (HTTP, NATS) and workers depend on this
// interface, not on the concrete implementation.
type Service interface {
	JoinShop(ctx context.Context, link, customerID string) (*model.JoinResult, error)
	CreateShop(ctx context.Context, req model.CreateShopRequest) (*model.Shop, error)
	CreateCustomer(ctx context.Context, req model.CreateCustomerRequest) (*model.Customer, error)
	ShopByLink(ctx context.Context, link string) (*model.Shop, error)
	CreateTransaction(ctx context.Context, req model.CreateTransactionRequest) (*model.Transaction, error)
	ListTransactions(ctx context.Context, shopID, customerID string) ([]model.Transaction, error)
	Balance(ctx context.Context, shopID, customerID string) (*ledger.Summary, error)
	CustomerShops(ctx context.Context, uid string) ([]model.Shop, error)
	ShopCustomers(ctx context.Context, shopID string) ([]model.Customer, error)
	RefreshBalance(ctx context.Context, shopID, customerID string) error
	Reconcile(ctx context.Context) (int, error)
}

// Store is the persistence surface the service needs. Implemented by
// repository.Store over Postgres.
type Store interface {
	CreateShop(ctx context.Context, shop *model.Shop) error
	CreateCustomer(ctx context.Context, customer *model.Customer) error
	ShopByLink(ctx context.Context, link string) (*model.Shop, error)
	ShopByID(ctx context.Context, id string) (*model.Shop, error)
	CustomerByID(ctx context.Context, uid string) (*model.Customer, error)
	// AddMembership unions the customer into the shop's customer set and
	// the shop into the customer's shop set inside one transaction.
	// Safe to call again with the same pair.
	AddMembership(ctx context.Context, shopID, customerID string) error
	InsertTransaction(ctx context.Context, tx *model.Transaction) error
	TransactionsFor(ctx context.Context, shopID, customerID string) ([]model.Transaction, error)
	ShopsByIDs(ctx context.Context, ids []string) ([]model.Shop, error)
	CustomersByIDs(ctx context.Context, uids []string) ([]model.Customer, error)
	OneSidedMemberships(ctx context.Context) ([]model.MembershipPair, error)
}

// BalanceCache is the read-through projection of balance summaries.
type BalanceCache interface {
	Get(ctx context.Context, shopID, customerID string) (*ledger.Summary, error)
	Set(ctx context.Context, shopID, customerID string, s ledger.Summary) error
}

// Bus publishes change-feed events.
type Bus interface {
	Publish(topic string, data []byte) error
}

const TopicTransactionsCreated = "transactions.created"

type CreditBook struct {
	store Store
	cache BalanceCache
	bus   Bus
	log   *zap.Logger
}

func New(store Store, cache BalanceCache, bus Bus, log *zap.Logger) *CreditBook {
	return &CreditBook{store: store, cache: cache, bus: bus, log: log.Named("service")}
}

// JoinShop resolves the link to a shop and records membership on both
// sides of the relation. Re-invoking with the same arguments is safe:
// the membership writes are set unions and the already-joined check
// turns the second call into a no-op result.
func (s *CreditBook) JoinShop(ctx context.Context, link, customerID string) (*model.JoinResult, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, ErrInvalidLink
	}
	if customerID == "" {
		return nil, ErrInvalidRequest
	}

	shop, err := s.store.ShopByLink(ctx, link)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("resolve shop link: %w", err)
	}

	for _, id := range shop.CustomerIDs {
		if id == customerID {
			return &model.JoinResult{
				Status:   model.JoinStatusAlreadyJoined,
				ShopID:   shop.ID,
				ShopName: shop.Name,
			}, nil
		}
	}

	if err := s.store.AddMembership(ctx, shop.ID, customerID); err != nil {
		return nil, fmt.Errorf("record membership: %w", err)
	}

	s.log.Info("customer joined shop",
		zap.String("shop_id", shop.ID),
		zap.String("customer_id", customerID),
	)
	return &model.JoinResult{
		Status:   model.JoinStatusJoined,
		ShopID:   shop.ID,
		ShopName: shop.Name,
	}, nil
}

func (s *CreditBook) CreateShop(ctx context.Context, req model.CreateShopRequest) (*model.Shop, error) {
	req.Link = strings.TrimSpace(req.Link)
	req.Name = strings.TrimSpace(req.Name)
	if req.OwnerID == "" || req.Name == "" {
		return nil, ErrInvalidRequest
	}
	if req.Link == "" {
		return nil, ErrInvalidLink
	}

	shop := &model.Shop{
		ID:          req.OwnerID, // shop id equals owner id
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Link:        req.Link,
		CustomerIDs: []string{},
	}
	if err := s.store.CreateShop(ctx, shop); err != nil {
		if errors.Is(err, repository.ErrDuplicateLink) {
			return nil, ErrLinkTaken
		}
		return nil, fmt.Errorf("create shop: %w", err)
	}
	return shop, nil
}

func (s *CreditBook) CreateCustomer(ctx context.Context, req model.CreateCustomerRequest) (*model.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.UID == "" || req.Name == "" {
		return nil, ErrInvalidRequest
	}

	customer := &model.Customer{
		UID:     req.UID,
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		ShopIDs: []string{},
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

func (s *CreditBook) ShopByLink(ctx context.Context, link string) (*model.Shop, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, ErrInvalidLink
	}
	shop, err := s.store.ShopByLink(ctx, link)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return shop, nil
}

// CreateTransaction validates and appends one immutable ledger entry,
// then publishes it on the change feed. Non-positive amounts are
// rejected here so the balance calculator stays a pure aggregator.
func (s *CreditBook) CreateTransaction(ctx context.Context, req model.CreateTransactionRequest) (*model.Transaction, error) {
	if req.ShopID == "" || req.CustomerID == "" {
		return nil, ErrInvalidRequest
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidType
	}

	tx := &model.Transaction{
		ID:          uuid.NewString(),
		ShopID:      req.ShopID,
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	event := model.TransactionEvent{
		ID:         tx.ID,
		ShopID:     tx.ShopID,
		CustomerID: tx.CustomerID,
		Amount:     tx.Amount,
		Type:       tx.Type,
		CreatedAt:  tx.CreatedAt,
	}
	data, _ := json.Marshal(event)
	if err := s.bus.Publish(TopicTransactionsCreated, data); err != nil {
		// The entry is durable; a lost feed event only delays the cache
		// refresh until the next read-miss recomputes it.
		s.log.Warn("publish transaction event failed",
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
	return tx, nil
}

// ListTransactions returns the scoped history, newest first. Ordering
// is a display concern and independent of aggregation.
func (s *CreditBook) ListTransactions(ctx context.Context, shopID, customerID string) ([]model.Transaction, error) {
	if shopID == "" || customerID == "" {
		return nil, ErrInvalidRequest
	}
	return s.store.TransactionsFor(ctx, shopID, customerID)
}

// Balance is cache-aside: serve the cached summary when present,
// otherwise compute from the transaction history and warm the cache.
func (s *CreditBook) Balance(ctx context.Context, shopID, customerID string) (*ledger.Summary, error) {
	if shopID == "" || customerID == "" {
		return nil, ErrInvalidRequest
	}

	cached, err := s.cache.Get(ctx, shopID, customerID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.log.Warn("balance cache read failed, recomputing",
			zap.String("shop_id", shopID),
			zap.Error(err),
		)
	}

	summary, err := s.computeBalance(ctx, shopID, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, shopID, customerID, *summary); err != nil {
		s.log.Warn("balance cache warmup failed", zap.Error(err))
	}
	return summary, nil
}

// RefreshBalance recomputes the summary from the durable store and
// replaces the cached value. Called by the feed worker on every
// transactions.created event; each snapshot replaces prior state
// wholesale, no diffing.
func (s *CreditBook) RefreshBalance(ctx context.Context, shopID, customerID string) error {
	summary, err := s.computeBalance(ctx, shopID, customerID)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, shopID, customerID, *summary)
}

func (s *CreditBook) computeBalance(ctx context.Context, shopID, customerID string) (*ledger.Summary, error) {
	entries, err := s.store.TransactionsFor(ctx, shopID, customerID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	summary := ledger.Compute(entries)
	return &summary, nil
}

func (s *CreditBook) CustomerShops(ctx context.Context, uid string) ([]model.Shop, error) {
	customer, err := s.store.CustomerByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	if len(customer.ShopIDs) == 0 {
		return []model.Shop{}, nil
	}
	return s.store.ShopsByIDs(ctx, customer.ShopIDs)
}

func (s *CreditBook) ShopCustomers(ctx context.Context, shopID string) ([]model.Customer, error) {
	shop, err := s.store.ShopByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	if len(shop.CustomerIDs) == 0 {
		return []model.Customer{}, nil
	}
	return s.store.CustomersByIDs(ctx, shop.CustomerIDs)
}

// Reconcile repairs one-sided memberships left behind by writes that
// predate the transactional join (or by out-of-band edits). Each
// repair is the same idempotent set union the join path uses.
func (s *CreditBook) Reconcile(ctx context.Context) (int, error) {
	pairs, err := s.store.OneSidedMemberships(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan memberships: %w", err)
	}

	repaired := 0
	for _, p := range pairs {
		if err := s.store.AddMembership(ctx, p.ShopID, p.CustomerID); err != nil {
			s.log.Error("membership repair failed",
				zap.String("shop_id", p.ShopID),
				zap.String("customer_id", p.CustomerID),
				zap.Error(err),
			)
			continue
		}
		repaired++
	}
	if repaired > 0 {
		s.log.Info("repaired one-sided memberships", zap.Int("count", repaired))
	}
	return repaired, nil
}
