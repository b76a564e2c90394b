package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/auth"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/ids"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/instances"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/inventoryview"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const subjectContextKey = "inventory_subject"

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingInstances      = errors.New("instance service dependency required")
	errMissingHoldings       = errors.New("holdings service dependency required")
	errMissingItems          = errors.New("item service dependency required")
	errMissingViews          = errors.New("inventory view service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator extracts and validates the bearer token of a request and
// returns its subject.
type TokenValidator interface {
	ValidateRequest(r *http.Request) (string, error)
}

type InstanceService interface {
	CreateInstance(ctx context.Context, instance instances.Instance) (instances.Instance, error)
	GetInstance(ctx context.Context, id string) (instances.Instance, error)
	ListInstances(ctx context.Context, limit, offset int) (instances.Collection, error)
}

type HoldingsService interface {
	UpdateHoldingRecord(ctx context.Context, holdingsID string, record holdings.Record) error
	CreateHoldingRecord(ctx context.Context, record holdings.Record) (holdings.Record, error)
	GetHoldingRecord(ctx context.Context, holdingsID string) (holdings.Record, error)
}

type ItemService interface {
	CreateItem(ctx context.Context, item items.Item) (items.Item, error)
	GetItem(ctx context.Context, id string) (items.Item, error)
}

type InventoryViewService interface {
	GetInstanceView(ctx context.Context, instanceID string) (inventoryview.View, error)
}

type Dependencies struct {
	Tokens    TokenValidator
	Instances InstanceService
	Holdings  HoldingsService
	Items     ItemService
	Views     InventoryViewService
	Metrics   http.Handler
	Logger    *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Instances == nil {
		return nil, errMissingInstances
	}
	if deps.Holdings == nil {
		return nil, errMissingHoldings
	}
	if deps.Items == nil {
		return nil, errMissingItems
	}
	if deps.Views == nil {
		return nil, errMissingViews
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		tokens:    deps.Tokens,
		instances: deps.Instances,
		holdings:  deps.Holdings,
		items:     deps.Items,
		views:     deps.Views,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/instance-storage/instances", handler.handleCreateInstance)
	protected.GET("/instance-storage/instances", handler.handleListInstances)
	protected.GET("/instance-storage/instances/:id", handler.handleGetInstance)
	protected.POST("/holdings-storage/holdings", handler.handleCreateHoldings)
	protected.GET("/holdings-storage/holdings/:id", handler.handleGetHoldings)
	protected.PUT("/holdings-storage/holdings/:id", handler.handleUpdateHoldings)
	protected.POST("/item-storage/items", handler.handleCreateItem)
	protected.GET("/item-storage/items/:id", handler.handleGetItem)
	protected.GET("/inventory-view/instances/:id", handler.handleGetInventoryView)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	tokens    TokenValidator
	instances InstanceService
	holdings  HoldingsService
	items     ItemService
	views     InventoryViewService
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCreateInstance(c *gin.Context) {
	var request instancePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.ID != "" && !ids.Valid(request.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	created, err := h.instances.CreateInstance(c.Request.Context(), request.toInstance())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, newInstancePayload(created))
	case errors.Is(err, instances.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists"})
	case errors.Is(err, instances.ErrDuplicateHRID):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duplicate_hrid"})
	default:
		h.logger.Error("failed to create instance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
	}
}

func (h *httpHandler) handleGetInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	instance, err := h.instances.GetInstance(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newInstancePayload(instance))
	case errors.Is(err, instances.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("failed to load instance", zap.String("instance_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
	}
}

func (h *httpHandler) handleListInstances(c *gin.Context) {
	limit, ok := queryInt(c, "limit", instances.DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	collection, err := h.instances.ListInstances(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list instances", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, newInstanceCollectionPayload(collection))
}

func (h *httpHandler) handleCreateHoldings(c *gin.Context) {
	var request holdingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.ID != "" && !ids.Valid(request.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	created, err := h.holdings.CreateHoldingRecord(c.Request.Context(), request.toRecord())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, newHoldingsPayload(created))
	case errors.Is(err, holdings.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists"})
	case errors.Is(err, holdings.ErrDuplicateHRID):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duplicate_hrid"})
	default:
		h.logger.Error("failed to create holdings record", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("create_failed", err))
	}
}

func (h *httpHandler) handleGetHoldings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	record, err := h.holdings.GetHoldingRecord(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newHoldingsPayload(record))
	case errors.Is(err, holdings.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("failed to load holdings record", zap.String("holdings_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("lookup_failed", err))
	}
}

func (h *httpHandler) handleUpdateHoldings(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var request holdingsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.ID != "" && !strings.EqualFold(request.ID, id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "id in body does not match the path"})
		return
	}

	err := h.holdings.UpdateHoldingRecord(c.Request.Context(), id, request.toRecord())
	var hridChanged *holdings.HRIDChangedError
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.As(err, &hridChanged):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": hridChanged.Error()})
	case errors.Is(err, holdings.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, holdings.ErrDuplicateHRID):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duplicate_hrid"})
	default:
		h.logger.Error("failed to update holdings record", zap.String("holdings_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("update_failed", err))
	}
}

func (h *httpHandler) handleCreateItem(c *gin.Context) {
	var request itemPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if request.ID != "" && !ids.Valid(request.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}
	if !ids.Valid(request.HoldingsRecordID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_holdings_record_id"})
		return
	}

	created, err := h.items.CreateItem(c.Request.Context(), request.toItem())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, newItemPayload(created))
	case errors.Is(err, items.ErrHoldingsNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "holdings_not_found"})
	case errors.Is(err, items.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists"})
	case errors.Is(err, items.ErrDuplicateHRID):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "duplicate_hrid"})
	default:
		h.logger.Error("failed to create item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
	}
}

func (h *httpHandler) handleGetItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := h.items.GetItem(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newItemPayload(item))
	case errors.Is(err, items.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("failed to load item", zap.String("item_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
	}
}

func (h *httpHandler) handleGetInventoryView(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	view, err := h.views.GetInstanceView(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newInventoryViewPayload(view))
	case errors.Is(err, inventoryview.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		h.logger.Error("failed to load inventory view", zap.String("instance_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	subject, err := h.tokens.ValidateRequest(c.Request)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrMissingToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	case errors.Is(err, auth.ErrExpiredToken):
		h.logger.Info("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	default:
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}

// pathID reads the :id parameter and rejects anything that is not a UUID.
func pathID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if !ids.Valid(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid id: " + id})
		return "", false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent.
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid " + name + ": " + raw})
		return 0, false
	}
	return value, true
}

func errorBody(code string, err error) gin.H {
	body := gin.H{"error": code}
	var serviceErr *holdings.ServiceError
	if errors.As(err, &serviceErr) {
		body["code"] = serviceErr.Code()
	}
	return body
}
