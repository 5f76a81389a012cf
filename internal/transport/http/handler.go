package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creditbook/internal/model"
	"creditbook/internal/service"
)

type Handler struct {
	svc service.Service
	log *zap.Logger
}

func NewHandler(svc service.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log.Named("http")}
}

func (h *Handler) Register(r *gin.Engine, jwtSecret []byte) {
	r.GET("/health", h.Health)
	r.GET("/shops/:link", h.GetShopByLink)

	authed := r.Group("/", Auth(jwtSecret))
	authed.POST("/shops", h.CreateShop)
	authed.POST("/customers", h.CreateCustomer)
	authed.POST("/join", h.Join)
	authed.POST("/transactions", h.CreateTransaction)
	authed.GET("/transactions", h.ListTransactions)
	authed.GET("/balance", h.GetBalance)
	authed.GET("/me/shops", h.ListMyShops)
	authed.GET("/shops/:link/customers", h.ListShopCustomers)
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) CreateShop(c *gin.Context) {
	uid, ok := UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
		Link string `json:"link" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_json")
		return
	}

	shop, err := h.svc.CreateShop(c.Request.Context(), model.CreateShopRequest{
		OwnerID: uid,
		Name:    req.Name,
		Link:    req.Link,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": shop})
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	uid, ok := UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		Name  string `json:"name" binding:"required"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_json")
		return
	}

	customer, err := h.svc.CreateCustomer(c.Request.Context(), model.CreateCustomerRequest{
		UID:   uid,
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": customer})
}

func (h *Handler) GetShopByLink(c *gin.Context) {
	shop, err := h.svc.ShopByLink(c.Request.Context(), c.Param("link"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	// Membership stays private on the public lookup.
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":   shop.ID,
		"name": shop.Name,
		"link": shop.Link,
	}})
}

// Join adds the authenticated customer to the shop behind the link.
// Joining twice is not an error: the second call reports
// already_joined and changes nothing.
func (h *Handler) Join(c *gin.Context) {
	uid, ok := UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		Link string `json:"link" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_json")
		return
	}

	result, err := h.svc.JoinShop(c.Request.Context(), req.Link, uid)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// CreateTransaction records a ledger entry for the caller's shop.
// Only the shop owner appends entries; the shop id equals the owner id.
func (h *Handler) CreateTransaction(c *gin.Context) {
	uid, ok := UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	var req struct {
		CustomerID  string `json:"customer_id" binding:"required"`
		Amount      int64  `json:"amount" binding:"required"`
		Type        string `json:"type" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_json")
		return
	}

	tx, err := h.svc.CreateTransaction(c.Request.Context(), model.CreateTransactionRequest{
		ShopID:      uid,
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		Type:        model.EntryType(req.Type),
		Description: req.Description,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tx})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	shopID, customerID, ok := h.scopedQuery(c)
	if !ok {
		return
	}
	entries, err := h.svc.ListTransactions(c.Request.Context(), shopID, customerID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *Handler) GetBalance(c *gin.Context) {
	shopID, customerID, ok := h.scopedQuery(c)
	if !ok {
		return
	}
	summary, err := h.svc.Balance(c.Request.Context(), shopID, customerID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *Handler) ListMyShops(c *gin.Context) {
	uid, ok := UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	shops, err := h.svc.CustomerShops(c.Request.Context(), uid)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": shops})
}

func (h *Handler) ListShopCustomers(c *gin.Context) {
	uid, ok := UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return
	}
	shop, err := h.svc.ShopByLink(c.Request.Context(), c.Param("link"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if shop.OwnerID != uid {
		respondError(c, http.StatusForbidden, "not the shop owner")
		return
	}
	customers, err := h.svc.ShopCustomers(c.Request.Context(), shop.ID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customers})
}

// scopedQuery reads the (shop_id, customer_id) pair and checks the
// caller is one of the two parties.
func (h *Handler) scopedQuery(c *gin.Context) (shopID, customerID string, ok bool) {
	uid, authed := UserID(c)
	if !authed {
		respondError(c, http.StatusUnauthorized, "missing identity")
		return "", "", false
	}
	shopID = c.Query("shop_id")
	customerID = c.Query("customer_id")
	if shopID == "" || customerID == "" {
		respondError(c, http.StatusBadRequest, "shop_id and customer_id are required")
		return "", "", false
	}
	if uid != shopID && uid != customerID {
		respondError(c, http.StatusForbidden, "not a party to this ledger")
		return "", "", false
	}
	return shopID, customerID, true
}

func (h *Handler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrShopNotFound),
		errors.Is(err, service.ErrCustomerNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidLink),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidType),
		errors.Is(err, service.ErrInvalidRequest):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrLinkTaken):
		respondError(c, http.StatusConflict, err.Error())
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
