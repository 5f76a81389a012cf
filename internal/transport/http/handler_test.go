package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creditbook/internal/ledger"
	"creditbook/internal/model"
	"creditbook/internal/service"
)

// ---- mock service ----

type mockService struct {
	joinFn     func(link, customerID string) (*model.JoinResult, error)
	createTxFn func(req model.CreateTransactionRequest) (*model.Transaction, error)
	balanceFn  func(shopID, customerID string) (*ledger.Summary, error)
	shopFn     func(link string) (*model.Shop, error)
}

func (m *mockService) JoinShop(ctx context.Context, link, customerID string) (*model.JoinResult, error) {
	if m.joinFn != nil {
		return m.joinFn(link, customerID)
	}
	return nil, errors.New("not configured")
}

func (m *mockService) CreateShop(ctx context.Context, req model.CreateShopRequest) (*model.Shop, error) {
	return &model.Shop{ID: req.OwnerID, OwnerID: req.OwnerID, Name: req.Name, Link: req.Link}, nil
}

func (m *mockService) CreateCustomer(ctx context.Context, req model.CreateCustomerRequest) (*model.Customer, error) {
	return &model.Customer{UID: req.UID, Name: req.Name, Phone: req.Phone}, nil
}

func (m *mockService) ShopByLink(ctx context.Context, link string) (*model.Shop, error) {
	if m.shopFn != nil {
		return m.shopFn(link)
	}
	return nil, service.ErrShopNotFound
}

func (m *mockService) CreateTransaction(ctx context.Context, req model.CreateTransactionRequest) (*model.Transaction, error) {
	if m.createTxFn != nil {
		return m.createTxFn(req)
	}
	return nil, errors.New("not configured")
}

func (m *mockService) ListTransactions(ctx context.Context, shopID, customerID string) ([]model.Transaction, error) {
	return []model.Transaction{}, nil
}

func (m *mockService) Balance(ctx context.Context, shopID, customerID string) (*ledger.Summary, error) {
	if m.balanceFn != nil {
		return m.balanceFn(shopID, customerID)
	}
	return &ledger.Summary{}, nil
}

func (m *mockService) CustomerShops(ctx context.Context, uid string) ([]model.Shop, error) {
	return []model.Shop{}, nil
}

func (m *mockService) ShopCustomers(ctx context.Context, shopID string) ([]model.Customer, error) {
	return []model.Customer{}, nil
}

func (m *mockService) RefreshBalance(ctx context.Context, shopID, customerID string) error {
	return nil
}

func (m *mockService) Reconcile(ctx context.Context) (int, error) { return 0, nil }

// ---- helpers ----

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func newTestRouter(svc service.Service, authUserID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, zap.NewNop())

	r.GET("/shops/:link", h.GetShopByLink)

	authed := r.Group("/", fakeAuth(authUserID))
	authed.POST("/join", h.Join)
	authed.POST("/transactions", h.CreateTransaction)
	authed.GET("/transactions", h.ListTransactions)
	authed.GET("/balance", h.GetBalance)
	return r
}

func doRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- tests ----

func TestJoin_OK(t *testing.T) {
	svc := &mockService{
		joinFn: func(link, customerID string) (*model.JoinResult, error) {
			if link != "corner-store" || customerID != "cust-1" {
				t.Errorf("JoinShop(%q, %q), want (corner-store, cust-1)", link, customerID)
			}
			return &model.JoinResult{Status: model.JoinStatusJoined, ShopID: "owner-1", ShopName: "Corner Store"}, nil
		},
	}
	w := doRequest(newTestRouter(svc, "cust-1"), http.MethodPost, "/join", gin.H{"link": "corner-store"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data model.JoinResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != model.JoinStatusJoined || resp.Data.ShopName != "Corner Store" {
		t.Errorf("result = %+v", resp.Data)
	}
}

func TestJoin_AlreadyJoinedIsNotAnError(t *testing.T) {
	svc := &mockService{
		joinFn: func(link, customerID string) (*model.JoinResult, error) {
			return &model.JoinResult{Status: model.JoinStatusAlreadyJoined, ShopID: "owner-1", ShopName: "Corner Store"}, nil
		},
	}
	w := doRequest(newTestRouter(svc, "cust-1"), http.MethodPost, "/join", gin.H{"link": "corner-store"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestJoin_ShopNotFound(t *testing.T) {
	svc := &mockService{
		joinFn: func(link, customerID string) (*model.JoinResult, error) {
			return nil, service.ErrShopNotFound
		},
	}
	w := doRequest(newTestRouter(svc, "cust-1"), http.MethodPost, "/join", gin.H{"link": "ghost"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestJoin_MissingLink(t *testing.T) {
	w := doRequest(newTestRouter(&mockService{}, "cust-1"), http.MethodPost, "/join", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateTransaction_ShopIDFromToken(t *testing.T) {
	svc := &mockService{
		createTxFn: func(req model.CreateTransactionRequest) (*model.Transaction, error) {
			if req.ShopID != "owner-1" {
				t.Errorf("ShopID = %q, want owner id from token", req.ShopID)
			}
			return &model.Transaction{ID: "tx-1", ShopID: req.ShopID, CustomerID: req.CustomerID, Amount: req.Amount, Type: req.Type}, nil
		},
	}
	w := doRequest(newTestRouter(svc, "owner-1"), http.MethodPost, "/transactions",
		gin.H{"customer_id": "cust-1", "amount": 250, "type": "due"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
}

func TestCreateTransaction_InvalidAmount(t *testing.T) {
	svc := &mockService{
		createTxFn: func(req model.CreateTransactionRequest) (*model.Transaction, error) {
			return nil, service.ErrInvalidAmount
		},
	}
	w := doRequest(newTestRouter(svc, "owner-1"), http.MethodPost, "/transactions",
		gin.H{"customer_id": "cust-1", "amount": -1, "type": "due"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetBalance_RequiresPartyToLedger(t *testing.T) {
	svc := &mockService{
		balanceFn: func(shopID, customerID string) (*ledger.Summary, error) {
			return &ledger.Summary{NetDue: 70}, nil
		},
	}
	router := newTestRouter(svc, "stranger")
	w := doRequest(router, http.MethodGet, "/balance?shop_id=owner-1&customer_id=cust-1", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	router = newTestRouter(svc, "cust-1")
	w = doRequest(router, http.MethodGet, "/balance?shop_id=owner-1&customer_id=cust-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestGetBalance_MissingParams(t *testing.T) {
	w := doRequest(newTestRouter(&mockService{}, "cust-1"), http.MethodGet, "/balance?shop_id=owner-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetShopByLink_PublicAndHidesMembership(t *testing.T) {
	svc := &mockService{
		shopFn: func(link string) (*model.Shop, error) {
			return &model.Shop{ID: "owner-1", Name: "Corner Store", Link: link, CustomerIDs: []string{"cust-1"}}, nil
		},
	}
	w := doRequest(newTestRouter(svc, ""), http.MethodGet, "/shops/corner-store", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "cust-1") {
		t.Error("public shop lookup leaked membership")
	}
}
