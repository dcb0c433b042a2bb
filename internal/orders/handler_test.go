package orders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/barmanlink/barmanlink/internal/roles"
)

func mustParseUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func newTestRouter(t *testing.T) (http.Handler, *memoryOrderRepo) {
	t.Helper()
	repo := newMemoryOrderRepo()
	svc := NewService(repo, nil, nil)
	handler := NewHandler(nil, svc, nil)
	r := chi.NewRouter()
	r.Route("/orders", handler.MountRoutes)
	return r, repo
}

func doJSON(t *testing.T, router http.Handler, method, path string, actorID string, role roles.Role, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
		req.Header.Set("X-Actor-Role", string(role))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestCreateOrderEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items": []map[string]any{
			{"product_id": 1, "qty": 2},
			{"product_id": 2, "qty": 3},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, "pending", body["status"])
	require.EqualValues(t, 5, body["total_items"])
	require.NotContains(t, body, "total_amount")
}

func TestCreateOrderEndpointRejectsMissingActor(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "", "", map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{{"product_id": 1, "qty": 1}},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "application/problem+json")
}

func TestCreateOrderEndpointRejectsAdmin(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "1", roles.RoleAdmin, map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{{"product_id": 1, "qty": 1}},
	})
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateOrderEndpointValidatesPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{{"product_id": 1, "qty": -2}},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransitionEndpointStatusMapping(t *testing.T) {
	router, repo := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{{"product_id": 1, "qty": 2}},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	orderID := decodeBody(t, rr)["id"].(string)

	// Wrong role on a known action: 403.
	rr = doJSON(t, router, http.MethodPost, "/orders/"+orderID+"/transitions", "30", roles.RoleBarmanStaff, map[string]any{
		"action": "issue_invoice",
	})
	require.Equal(t, http.StatusForbidden, rr.Code)

	// Reject without a reason: 400.
	rr = doJSON(t, router, http.MethodPost, "/orders/"+orderID+"/transitions", "20", roles.RolePharmacyManager, map[string]any{
		"action": "reject",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Permitted pair in the wrong state: 409.
	rr = doJSON(t, router, http.MethodPost, "/orders/"+orderID+"/transitions", "30", roles.RoleBarmanStaff, map[string]any{
		"action": "approve",
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	// The real approval succeeds.
	rr = doJSON(t, router, http.MethodPost, "/orders/"+orderID+"/transitions", "20", roles.RolePharmacyManager, map[string]any{
		"action": "approve", "notes": "looks fine",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "approved_pm", decodeBody(t, rr)["status"])

	id := mustParseUUID(t, orderID)
	require.Len(t, repo.logs[id], 1)
}

func TestTransitionEndpointUnknownOrder(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders/08e531bc-33ea-44e9-96a9-3c9df548da86/transitions", "20", roles.RolePharmacyManager, map[string]any{
		"action": "approve",
	})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/orders/not-a-uuid/transitions", "20", roles.RolePharmacyManager, map[string]any{
		"action": "approve",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPricingEndpointFormatsTotal(t *testing.T) {
	router, repo := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{{"product_id": 1, "qty": 2}, {"product_id": 2, "qty": 3}},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	orderID := decodeBody(t, rr)["id"].(string)

	id := mustParseUUID(t, orderID)
	seed := repo.orders[id]
	seed.Status = StatusApprovedBS
	repo.orders[id] = seed

	rr = doJSON(t, router, http.MethodPost, "/orders/"+orderID+"/pricing", "40", roles.RoleBarmanManager, map[string]any{
		"lines": []map[string]any{
			{"product_id": 1, "unit_price": 600, "total_price": 1200},
			{"product_id": 2, "unit_price": 50, "total_price": 150},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, "1,350.00", body["total_amount"])

	// Staff may not price.
	rr = doJSON(t, router, http.MethodPost, "/orders/"+orderID+"/pricing", "30", roles.RoleBarmanStaff, map[string]any{
		"lines": []map[string]any{{"product_id": 1, "unit_price": 1, "total_price": 1}},
	})
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestApprovalsEndpointFiltersForViewer(t *testing.T) {
	router, repo := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items":       []map[string]any{{"product_id": 1, "qty": 1}},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	orderID := decodeBody(t, rr)["id"].(string)
	id := mustParseUUID(t, orderID)

	repo.logs[id] = []ApprovalLogEntry{
		{ID: 1, OrderID: id, ActorID: 20, FromStatus: StatusPending, ToStatus: StatusApprovedPM},
		{ID: 2, OrderID: id, ActorID: 30, FromStatus: StatusApprovedPM, ToStatus: StatusApprovedBS},
	}

	rr = doJSON(t, router, http.MethodGet, "/orders/"+orderID+"/approvals", "40", roles.RoleBarmanManager, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	approvals := decodeBody(t, rr)["approvals"].([]any)
	require.Len(t, approvals, 1)

	rr = doJSON(t, router, http.MethodGet, "/orders/"+orderID+"/approvals", "99", roles.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	approvals = decodeBody(t, rr)["approvals"].([]any)
	require.Len(t, approvals, 2)
}

func TestGetOrderEndpointMergesDuplicateLines(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
		"pharmacy_id": 1,
		"items": []map[string]any{
			{"product_id": 7, "qty": 2},
			{"product_id": 7, "qty": 3},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	orderID := decodeBody(t, rr)["id"].(string)

	rr = doJSON(t, router, http.MethodGet, "/orders/"+orderID, "10", roles.RolePharmacyStaff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeBody(t, rr)["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	require.EqualValues(t, 5, line["qty"])
	require.Equal(t, "unknown", line["category"])
}

func TestListOrdersEndpointPagination(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rr := doJSON(t, router, http.MethodPost, "/orders", "10", roles.RolePharmacyStaff, map[string]any{
			"pharmacy_id": 1,
			"items":       []map[string]any{{"product_id": 1, "qty": 1}},
		})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := doJSON(t, router, http.MethodGet, "/orders?page=1&per_page=2", "10", roles.RolePharmacyStaff, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	pagination := body["pagination"].(map[string]any)
	require.EqualValues(t, 3, pagination["total"])
}
