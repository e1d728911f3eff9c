package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stockledger/internal/logging"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/xuri/excelize/v2"
)

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := service.New(repository.NewMemory())
	return &testServer{t: t, router: NewRouter(NewHandler(svc, logging.Discard()))}
}

// do sends body as JSON with the given role and decodes a JSON response.
func (s *testServer) do(method, path, role string, body any) (int, map[string]any) {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Actor-ID", "1")
		req.Header.Set("X-Actor-Role", role)
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (int, map[string]any) {
	s.t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			s.t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (s *testServer) createItem(name string, opening int) int64 {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/v1/items", "admin", map[string]any{
		"name":            name,
		"selling_price":   "10",
		"min_stock_level": 2,
		"opening_stock":   opening,
	})
	if status != http.StatusCreated {
		s.t.Fatalf("create item: status %d body %v", status, body)
	}
	return int64(body["id"].(float64))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", status, body)
	}
}

func TestActorHeadersRequired(t *testing.T) {
	s := newTestServer(t)

	if status, _ := s.do(http.MethodGet, "/api/v1/items", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", status)
	}
	if status, _ := s.do(http.MethodGet, "/api/v1/items", "janitor", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown role, got %d", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("X-Actor-ID", "abc")
	req.Header.Set("X-Actor-Role", "admin")
	if status, _ := s.serve(req); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad actor id, got %d", status)
	}
}

func TestCapabilityTableEnforced(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodPost, "/api/v1/items", "staff", map[string]any{"name": "Widget"})
	if status != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("expected staff item create to be forbidden, got %d %v", status, body)
	}
	if status, _ := s.do(http.MethodGet, "/api/v1/sales-invoices", "inventory_manager", nil); status != http.StatusForbidden {
		t.Fatalf("expected inventory manager to be refused invoices, got %d", status)
	}
	if status, _ := s.do(http.MethodGet, "/api/v1/sales-invoices", "sales_manager", nil); status != http.StatusOK {
		t.Fatalf("expected sales manager to read invoices, got %d", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales-invoices", nil)
	req.Header.Set("X-Actor-ID", "9")
	req.Header.Set("X-Actor-Role", "staff")
	req.Header.Set("X-Actor-Grants", "Sales_Invoices:Read, junk")
	if status, _ := s.serve(req); status != http.StatusOK {
		t.Fatalf("expected an explicit grant to allow the read, got %d", status)
	}
}

func TestItemValidationErrors(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodPost, "/api/v1/items", "admin", map[string]any{"unit": "pcs"})
	if status != http.StatusBadRequest || body["code"] != "VALIDATION_ERROR" || body["error"] != "name is required" {
		t.Fatalf("expected name required, got %d %v", status, body)
	}
	status, body = s.do(http.MethodPost, "/api/v1/items", "admin", `{"name":"x","current_stock":5}`)
	if status != http.StatusBadRequest || body["error"] != "invalid JSON body" {
		t.Fatalf("expected unknown fields to be refused, got %d %v", status, body)
	}
	status, body = s.do(http.MethodGet, "/api/v1/items/abc", "admin", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected bad id to be refused, got %d %v", status, body)
	}
	status, body = s.do(http.MethodGet, "/api/v1/items/77", "admin", nil)
	if status != http.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %v", status, body)
	}
}

func TestAdjustStockAndAlerts(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("Widget", 5)

	status, body := s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/adjust-stock", id), "inventory_manager",
		map[string]any{"quantity": 4, "movement_type": "OUT"})
	if status != http.StatusOK {
		t.Fatalf("adjust: %d %v", status, body)
	}
	item := body["item"].(map[string]any)
	if item["current_stock"].(float64) != 1 {
		t.Fatalf("expected stock 1, got %v", item["current_stock"])
	}

	status, body = s.do(http.MethodPost, fmt.Sprintf("/api/v1/items/%d/adjust-stock", id), "inventory_manager",
		map[string]any{"quantity": 4, "movement_type": "OUT"})
	if status != http.StatusConflict || body["code"] != "INSUFFICIENT_STOCK" {
		t.Fatalf("expected 409 insufficient stock, got %d %v", status, body)
	}

	status, body = s.do(http.MethodGet, "/api/v1/alerts/unresolved-count", "staff", nil)
	if status != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("expected one unresolved alert, got %d %v", status, body)
	}
	status, body = s.do(http.MethodGet, "/api/v1/alerts?is_resolved=false", "staff", nil)
	if status != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("expected one alert listed, got %d %v", status, body)
	}
	alertID := int64(body["items"].([]any)[0].(map[string]any)["id"].(float64))

	if status, _ := s.do(http.MethodPatch, fmt.Sprintf("/api/v1/alerts/%d/resolve", alertID), "staff", nil); status != http.StatusForbidden {
		t.Fatalf("expected staff resolve to be forbidden, got %d", status)
	}
	status, body = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/alerts/%d/resolve", alertID), "inventory_manager", nil)
	if status != http.StatusOK || body["is_resolved"] != true {
		t.Fatalf("expected resolved alert, got %d %v", status, body)
	}
	status, body = s.do(http.MethodPatch, fmt.Sprintf("/api/v1/alerts/%d/resolve", alertID), "inventory_manager", nil)
	if status != http.StatusConflict || body["code"] != "ALREADY_RESOLVED" {
		t.Fatalf("expected 409 already resolved, got %d %v", status, body)
	}

	status, body = s.do(http.MethodGet, fmt.Sprintf("/api/v1/stock-movements?item_id=%d", id), "staff", nil)
	if status != http.StatusOK || body["count"].(float64) != 2 {
		t.Fatalf("expected opening and adjustment movements, got %d %v", status, body)
	}
}

func TestInvoiceFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("Widget", 10)

	status, body := s.do(http.MethodPost, "/api/v1/sales-invoices", "sales_manager", map[string]any{
		"party_name": "Retail Co",
		"lines":      []map[string]any{{"item_id": id, "quantity": 4, "rate": "12.50"}},
	})
	if status != http.StatusCreated {
		t.Fatalf("create invoice: %d %v", status, body)
	}
	if body["number"] != "INV000001" || body["status"] != "Draft" || body["grand_total"] != "50" {
		t.Fatalf("unexpected invoice %v", body)
	}
	invoiceID := int64(body["id"].(float64))
	base := fmt.Sprintf("/api/v1/sales-invoices/%d", invoiceID)

	status, body = s.do(http.MethodPost, base+"/payments", "sales_manager", map[string]any{"amount": "10"})
	if status != http.StatusConflict || body["code"] != "NOT_COMPLETED" {
		t.Fatalf("expected payment on draft to conflict, got %d %v", status, body)
	}

	status, body = s.do(http.MethodPatch, base+"/complete", "sales_manager", nil)
	if status != http.StatusOK || body["status"] != "Completed" {
		t.Fatalf("complete: %d %v", status, body)
	}
	status, body = s.do(http.MethodPatch, base+"/complete", "sales_manager", nil)
	if status != http.StatusConflict || body["code"] != "ALREADY_COMPLETED" {
		t.Fatalf("expected second completion to conflict, got %d %v", status, body)
	}

	status, body = s.do(http.MethodPost, base+"/payments", "sales_manager", map[string]any{"amount": "80"})
	if status != http.StatusBadRequest || body["code"] != "EXCEEDS_REMAINING_BALANCE" {
		t.Fatalf("expected overpayment refused, got %d %v", status, body)
	}
	status, body = s.do(http.MethodPost, base+"/payments", "sales_manager", map[string]any{
		"amount": "50", "payment_method": "UPI", "reference": "TXN-1",
	})
	if status != http.StatusOK || body["payment_status"] != "Paid" {
		t.Fatalf("expected paid invoice, got %d %v", status, body)
	}

	status, body = s.do(http.MethodGet, base+"/payments", "sales_manager", nil)
	if status != http.StatusOK || body["remaining_amount"] != "0" || len(body["payments"].([]any)) != 1 {
		t.Fatalf("unexpected payment summary %d %v", status, body)
	}

	status, body = s.do(http.MethodDelete, base, "admin", nil)
	if status != http.StatusConflict || body["code"] != "CANNOT_DELETE_NON_DRAFT" {
		t.Fatalf("expected completed invoice delete to conflict, got %d %v", status, body)
	}

	status, body = s.do(http.MethodPost, "/api/v1/sales-returns", "sales_manager", map[string]any{
		"source_id": invoiceID,
		"status":    "Completed",
		"lines":     []map[string]any{{"item_id": id, "quantity": 1, "rate": "12.50"}},
	})
	if status != http.StatusCreated || body["status"] != "Completed" || body["party_name"] != "Retail Co" {
		t.Fatalf("create completed return: %d %v", status, body)
	}

	status, body = s.do(http.MethodGet, base, "sales_manager", nil)
	if status != http.StatusOK || body["total_returned"] != "12.5" || body["payment_status"] != "Overpaid" {
		t.Fatalf("expected invoice to reflect the return, got %d %v", status, body)
	}

	status, body = s.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%d", id), "staff", nil)
	if status != http.StatusOK || body["current_stock"].(float64) != 7 {
		t.Fatalf("expected stock 7, got %d %v", status, body)
	}
}

func TestRouteSetDependsOnKind(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("Widget", 10)

	status, body := s.do(http.MethodPost, "/api/v1/purchase-orders", "admin", map[string]any{
		"lines": []map[string]any{{"item_id": id, "quantity": 2, "rate": "1"}},
	})
	if status != http.StatusCreated || body["number"] != "PO000001" {
		t.Fatalf("create order: %d %v", status, body)
	}
	base := fmt.Sprintf("/api/v1/purchase-orders/%d", int64(body["id"].(float64)))

	if status, _ := s.do(http.MethodPatch, base+"/complete", "admin", nil); status != http.StatusNotFound && status != http.StatusMethodNotAllowed {
		t.Fatalf("expected orders to have no complete route, got %d", status)
	}
	if status, _ := s.do(http.MethodPost, base+"/payments", "admin", map[string]any{"amount": "1"}); status != http.StatusNotFound && status != http.StatusMethodNotAllowed {
		t.Fatalf("expected orders to have no payment route, got %d", status)
	}

	status, body = s.do(http.MethodPatch, base+"/status", "admin", map[string]any{"status": "Approved"})
	if status != http.StatusOK || body["status"] != "Approved" {
		t.Fatalf("approve order: %d %v", status, body)
	}
	status, body = s.do(http.MethodPatch, base+"/status", "admin", map[string]any{"status": "Sent"})
	if status != http.StatusConflict || body["code"] != "INVALID_TRANSITION" {
		t.Fatalf("expected invalid transition, got %d %v", status, body)
	}
	status, body = s.do(http.MethodPatch, base+"/status", "admin", map[string]any{"status": "Shipped"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected unknown status refused, got %d %v", status, body)
	}
}

func TestImportItemsExcel(t *testing.T) {
	s := newTestServer(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"SKU", "Name", "Unit", "Selling Price", "Opening Stock"},
		{"HAM-1", "Hammer", "pcs", 12.5, 3},
		{"SAW-1", "Saw", "crate", 1, 0},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var workbook bytes.Buffer
	if err := f.Write(&workbook); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "items.xlsx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(workbook.Bytes()); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/import-excel", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Actor-ID", "1")
	req.Header.Set("X-Actor-Role", "admin")
	status, body := s.serve(req)
	if status != http.StatusOK {
		t.Fatalf("import: %d %v", status, body)
	}
	if body["created"].(float64) != 1 || body["failed"].(float64) != 1 || body["total_rows"].(float64) != 2 {
		t.Fatalf("unexpected import result %v", body)
	}

	status, body = s.do(http.MethodGet, "/api/v1/items?search=ham", "staff", nil)
	if status != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("expected imported item listed, got %d %v", status, body)
	}
}

func TestExportMovements(t *testing.T) {
	s := newTestServer(t)
	s.createItem("Widget", 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock-movements/export", nil)
	req.Header.Set("X-Actor-ID", "1")
	req.Header.Set("X-Actor-Role", "staff")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("expected xlsx attachment, got %q", rec.Header().Get("Content-Disposition"))
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Stock Movements")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one movement, got %d rows", len(rows))
	}
}
