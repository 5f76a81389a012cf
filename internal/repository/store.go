package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"creditbook/internal/model"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateLink = errors.New("shop link already exists")
	ErrCacheMiss     = errors.New("balance not found in cache")
)

// Store persists shops, customers and transactions in Postgres.
// Membership is kept redundantly on both records (shops.customer_ids
// and customers.shop_ids); AddMembership keeps the two sides in step.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const uniqueViolation = "23505"

func (s *Store) CreateShop(ctx context.Context, shop *model.Shop) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO shops (id, owner_id, name, link, customer_ids)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		shop.ID, shop.OwnerID, shop.Name, shop.Link, shop.CustomerIDs,
	).Scan(&shop.CreatedAt, &shop.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateLink
		}
		return fmt.Errorf("insert shop: %w", err)
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer *model.Customer) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customers (uid, name, phone, shop_ids)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (uid) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = now()
		 RETURNING created_at, updated_at`,
		customer.UID, customer.Name, customer.Phone, customer.ShopIDs,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// ShopByLink resolves a shareable slug. The unique index on link makes
// more than one match impossible at write time; LIMIT 1 keeps the read
// well defined even if the invariant were violated out of band.
func (s *Store) ShopByLink(ctx context.Context, link string) (*model.Shop, error) {
	return s.scanShop(s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, link, customer_ids, created_at, updated_at
		 FROM shops WHERE link = $1
		 ORDER BY created_at LIMIT 1`, link))
}

func (s *Store) ShopByID(ctx context.Context, id string) (*model.Shop, error) {
	return s.scanShop(s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, link, customer_ids, created_at, updated_at
		 FROM shops WHERE id = $1`, id))
}

func (s *Store) scanShop(row pgx.Row) (*model.Shop, error) {
	var shop model.Shop
	err := row.Scan(&shop.ID, &shop.OwnerID, &shop.Name, &shop.Link,
		&shop.CustomerIDs, &shop.CreatedAt, &shop.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan shop: %w", err)
	}
	return &shop, nil
}

func (s *Store) CustomerByID(ctx context.Context, uid string) (*model.Customer, error) {
	var c model.Customer
	err := s.pool.QueryRow(ctx,
		`SELECT uid, name, phone, shop_ids, created_at, updated_at
		 FROM customers WHERE uid = $1`, uid,
	).Scan(&c.UID, &c.Name, &c.Phone, &c.ShopIDs, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

// AddMembership unions the pair into both membership arrays inside one
// transaction: both sides update together or neither does. The guarded
// array_append makes a retry with the same pair a no-op.
func (s *Store) AddMembership(ctx context.Context, shopID, customerID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin membership tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE shops
		 SET customer_ids = array_append(customer_ids, $2), updated_at = now()
		 WHERE id = $1 AND NOT ($2 = ANY(customer_ids))`,
		shopID, customerID)
	if err != nil {
		return fmt.Errorf("update shop membership: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE customers
		 SET shop_ids = array_append(shop_ids, $1), updated_at = now()
		 WHERE uid = $2 AND NOT ($1 = ANY(shop_ids))`,
		shopID, customerID)
	if err != nil {
		return fmt.Errorf("update customer membership: %w", err)
	}

	return tx.Commit(ctx)
}

// InsertTransaction appends one ledger entry. CreatedAt comes back from
// the database; entries are never updated or deleted afterwards.
func (s *Store) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO transactions (id, shop_id, customer_id, amount, type, description)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		t.ID, t.ShopID, t.CustomerID, t.Amount, t.Type, t.Description,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) TransactionsFor(ctx context.Context, shopID, customerID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, shop_id, customer_id, amount, type, description, created_at
		 FROM transactions
		 WHERE shop_id = $1 AND customer_id = $2
		 ORDER BY created_at DESC`,
		shopID, customerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	entries := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.ShopID, &t.CustomerID, &t.Amount,
			&t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}

func (s *Store) ShopsByIDs(ctx context.Context, ids []string) ([]model.Shop, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, link, customer_ids, created_at, updated_at
		 FROM shops WHERE id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, fmt.Errorf("query shops: %w", err)
	}
	defer rows.Close()

	shops := []model.Shop{}
	for rows.Next() {
		var shop model.Shop
		if err := rows.Scan(&shop.ID, &shop.OwnerID, &shop.Name, &shop.Link,
			&shop.CustomerIDs, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func (s *Store) CustomersByIDs(ctx context.Context, uids []string) ([]model.Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT uid, name, phone, shop_ids, created_at, updated_at
		 FROM customers WHERE uid = ANY($1) ORDER BY name`, uids)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	customers := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.UID, &c.Name, &c.Phone, &c.ShopIDs,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// OneSidedMemberships finds pairs recorded on only one side of the
// relation, in either direction.
func (s *Store) OneSidedMemberships(ctx context.Context) ([]model.MembershipPair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, c.uid FROM shops s
		   JOIN customers c ON c.uid = ANY(s.customer_ids)
		  WHERE NOT (s.id = ANY(c.shop_ids))
		 UNION
		 SELECT s.id, c.uid FROM customers c
		   JOIN shops s ON s.id = ANY(c.shop_ids)
		  WHERE NOT (c.uid = ANY(s.customer_ids))`)
	if err != nil {
		return nil, fmt.Errorf("query one-sided memberships: %w", err)
	}
	defer rows.Close()

	var pairs []model.MembershipPair
	for rows.Next() {
		var p model.MembershipPair
		if err := rows.Scan(&p.ShopID, &p.CustomerID); err != nil {
			return nil, fmt.Errorf("scan membership pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
