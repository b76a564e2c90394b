package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/auth"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/hrid"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/ids"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/instances"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/inventoryview"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/metrics"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/server"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/storage"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jsonContentType = "application/json"

type apiClient struct {
	t       *testing.T
	baseURL string
	token   string
}

func (c apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Content-Type", jsonContentType)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}
	payload := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(response.Header.Get("Content-Type"), jsonContentType) {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.t.Fatalf("failed to decode response %s: %v", raw, err)
		}
	}
	return response.StatusCode, payload
}

func TestHoldingsUpdateFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&instances.Instance{}, &holdings.Record{}, &items.Item{}, &hrid.Setting{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	hridManager, err := hrid.NewManager(hrid.Config{Database: db, InstancesPrefix: "in", HoldingsPrefix: "ho", ItemsPrefix: "it"})
	if err != nil {
		testContext.Fatalf("failed to build hrid manager: %v", err)
	}
	idProvider := ids.NewUUIDProvider()
	repository, err := holdings.NewRepository(db)
	if err != nil {
		testContext.Fatalf("failed to build repository: %v", err)
	}
	txManager, err := storage.NewTxManager(db)
	if err != nil {
		testContext.Fatalf("failed to build tx manager: %v", err)
	}
	instanceService, err := instances.NewService(instances.ServiceConfig{Database: db, HRIDs: hridManager, IDProvider: idProvider})
	if err != nil {
		testContext.Fatalf("failed to build instance service: %v", err)
	}
	itemService, err := items.NewService(items.ServiceConfig{Database: db, Holdings: repository, HRIDs: hridManager, Transactions: txManager, IDProvider: idProvider})
	if err != nil {
		testContext.Fatalf("failed to build item service: %v", err)
	}
	recorder := metrics.NewRecorder()
	holdingsService, err := holdings.NewService(holdings.ServiceConfig{
		Store:        repository,
		HRIDs:        hridManager,
		Items:        itemService,
		Transactions: txManager,
		IDProvider:   idProvider,
		Metrics:      recorder,
	})
	if err != nil {
		testContext.Fatalf("failed to build holdings service: %v", err)
	}
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("integration-secret"),
		Issuer:        "inventory-storage",
		Audience:      "inventory-api",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		testContext.Fatalf("failed to build token issuer: %v", err)
	}

	viewService, err := inventoryview.NewService(inventoryview.ServiceConfig{
		Instances: instanceService,
		Holdings:  repository,
		Items:     itemService,
	})
	if err != nil {
		testContext.Fatalf("failed to build inventory view service: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:    tokenIssuer,
		Instances: instanceService,
		Holdings:  holdingsService,
		Items:     itemService,
		Views:     viewService,
		Metrics:   recorder.Handler(),
		Logger:    zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	token, _, err := tokenIssuer.IssueToken(context.Background(), "cataloger")
	if err != nil {
		testContext.Fatalf("failed to issue token: %v", err)
	}
	client := apiClient{t: testContext, baseURL: testServer.URL, token: token}

	status, instance := client.do(http.MethodPost, "/instance-storage/instances", map[string]any{"title": "Moby Dick"})
	if status != http.StatusCreated {
		testContext.Fatalf("expected instance to be created, got %d", status)
	}

	const holdingsID = "3d1c1f5a-7b2e-4f6a-8c9d-0e1f2a3b4c5d"
	status, _ = client.do(http.MethodPut, "/holdings-storage/holdings/"+holdingsID, map[string]any{
		"instance_id":           instance["id"],
		"permanent_location_id": "loc-a",
	})
	if status != http.StatusNoContent {
		testContext.Fatalf("expected holdings to be created through PUT, got %d", status)
	}

	status, item := client.do(http.MethodPost, "/item-storage/items", map[string]any{"holdings_record_id": holdingsID})
	if status != http.StatusCreated {
		testContext.Fatalf("expected item to be created, got %d", status)
	}
	if item["effective_location_id"] != "loc-a" {
		testContext.Fatalf("unexpected initial effective location %v", item["effective_location_id"])
	}

	status, stored := client.do(http.MethodGet, "/holdings-storage/holdings/"+holdingsID, nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected holdings lookup to succeed, got %d", status)
	}
	if stored["hrid"] != "ho00000001" {
		testContext.Fatalf("unexpected hrid %v", stored["hrid"])
	}

	status, _ = client.do(http.MethodPut, "/holdings-storage/holdings/"+holdingsID, map[string]any{
		"hrid":                  "ho00000001",
		"instance_id":           instance["id"],
		"permanent_location_id": "loc-b",
	})
	if status != http.StatusNoContent {
		testContext.Fatalf("expected holdings update to succeed, got %d", status)
	}

	status, reloaded := client.do(http.MethodGet, "/item-storage/items/"+item["id"].(string), nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected item lookup to succeed, got %d", status)
	}
	if reloaded["effective_location_id"] != "loc-b" {
		testContext.Fatalf("expected item to follow holdings location, got %v", reloaded["effective_location_id"])
	}

	status, view := client.do(http.MethodGet, "/inventory-view/instances/"+instance["id"].(string), nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected inventory view to load, got %d", status)
	}
	viewItems, ok := view["items"].([]any)
	if !ok || len(viewItems) != 1 {
		testContext.Fatalf("expected one item in the inventory view, got %v", view["items"])
	}
	if viewItems[0].(map[string]any)["effective_location_id"] != "loc-b" {
		testContext.Fatalf("inventory view shows stale item location %v", viewItems[0])
	}
	if viewHoldings, ok := view["holdings_records"].([]any); !ok || len(viewHoldings) != 1 {
		testContext.Fatalf("expected one holdings record in the inventory view, got %v", view["holdings_records"])
	}

	status, collection := client.do(http.MethodGet, "/instance-storage/instances?limit=10", nil)
	if status != http.StatusOK {
		testContext.Fatalf("expected instance collection to load, got %d", status)
	}
	if collection["total_records"] != float64(1) {
		testContext.Fatalf("unexpected total_records %v", collection["total_records"])
	}

	status, refused := client.do(http.MethodPut, "/holdings-storage/holdings/"+holdingsID, map[string]any{
		"hrid":                  "ho99999999",
		"permanent_location_id": "loc-c",
	})
	if status != http.StatusBadRequest {
		testContext.Fatalf("expected hrid change to be refused, got %d", status)
	}
	if refused["message"] != "The hrid field cannot be changed: new=ho99999999, old=ho00000001" {
		testContext.Fatalf("unexpected refusal message %v", refused["message"])
	}

	scrape, err := http.Get(testServer.URL + "/metrics")
	if err != nil {
		testContext.Fatalf("failed to scrape metrics: %v", err)
	}
	defer scrape.Body.Close()
	exposition, err := io.ReadAll(scrape.Body)
	if err != nil {
		testContext.Fatalf("failed to read metrics: %v", err)
	}
	if !strings.Contains(string(exposition), `inventory_holdings_writes_total{outcome="bad_request",path="update"} 1`) {
		testContext.Fatalf("expected refused update to be counted:\n%s", exposition)
	}
}
