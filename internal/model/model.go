package model

import "time"

// EntryType classifies a ledger entry by its economic effect.
type EntryType string

const (
	EntryPaid    EntryType = "paid"
	EntryDue     EntryType = "due"
	EntryAdvance EntryType = "advance"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryPaid, EntryDue, EntryAdvance:
		return true
	}
	return false
}

// Shop is a storefront record. The shop id equals the owner's auth id.
// CustomerIDs is the shop-side half of the membership relation and
// holds no duplicates.
type Shop struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Link        string    `json:"link"`
	CustomerIDs []string  `json:"customer_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Customer is a buyer profile keyed by the auth identity. ShopIDs is
// the customer-side half of the membership relation.
type Customer struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	ShopIDs   []string  `json:"shop_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger entry. Amount is in minor units
// and always positive; CreatedAt is assigned by the database.
type Transaction struct {
	ID          string    `json:"id"`
	ShopID      string    `json:"shop_id"`
	CustomerID  string    `json:"customer_id"`
	Amount      int64     `json:"amount"`
	Type        EntryType `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type JoinStatus string

const (
	JoinStatusJoined        JoinStatus = "joined"
	JoinStatusAlreadyJoined JoinStatus = "already_joined"
)

// JoinResult is returned by a successful (or idempotent) join. The
// shop name is carried for confirmation messaging.
type JoinResult struct {
	Status   JoinStatus `json:"status"`
	ShopID   string     `json:"shop_id"`
	ShopName string     `json:"shop_name"`
}

type CreateShopRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Link    string `json:"link"`
}

type CreateCustomerRequest struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CreateTransactionRequest struct {
	ShopID      string    `json:"shop_id"`
	CustomerID  string    `json:"customer_id"`
	Amount      int64     `json:"amount"`
	Type        EntryType `json:"type"`
	Description string    `json:"description"`
}

// TransactionEvent is the change-feed payload published on
// "transactions.created" after every successful insert.
type TransactionEvent struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop_id"`
	CustomerID string    `json:"customer_id"`
	Amount     int64     `json:"amount"`
	Type       EntryType `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// MembershipPair identifies one customer/shop relation, used by the
// reconciliation sweep when one side of the relation is missing.
type MembershipPair struct {
	ShopID     string
	CustomerID string
}
