package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/custrisk-backend/internal/data/repos"
	"github.com/yungbote/custrisk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/custrisk-backend/internal/domain"
	httpH "github.com/yungbote/custrisk-backend/internal/http/handlers"
	"github.com/yungbote/custrisk-backend/internal/observability"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/oracle/stub"
	"github.com/yungbote/custrisk-backend/internal/services"
)

func newTestRouter(t *testing.T, orc oracle.Oracle) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	customerRepo := repos.NewCustomerRepo(db, log)
	featureRepo := repos.NewCustomerFeatureRepo(db, log)
	predictionRepo := repos.NewRiskPredictionRepo(db, log)
	mitigationRepo := repos.NewMitigationRepo(db, log)

	metrics := observability.NewMetrics()
	opts := services.WorkflowOptions{OracleTimeout: time.Second, Metrics: metrics}
	features := services.NewFeatureStore(db, log, customerRepo, featureRepo, nil)
	ledger := services.NewRiskLedger(db, log, customerRepo, predictionRepo, nil)
	tracker := services.NewMitigationTracker(db, log, customerRepo, mitigationRepo, ledger, nil, metrics, nil)
	workflow := services.NewRiskWorkflowService(db, log, customerRepo, featureRepo, features, ledger, orc, opts)
	customers := services.NewCustomerService(db, log, customerRepo, featureRepo, predictionRepo, mitigationRepo, opts)

	return NewRouter(RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ExposeMetrics:     true,
		CustomerHandler:   httpH.NewCustomerHandler(log, customers, workflow),
		PredictionHandler: httpH.NewPredictionHandler(log, workflow),
		MitigationHandler: httpH.NewMitigationHandler(log, tracker),
		HealthHandler:     httpH.NewHealthHandler(nil),
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, status, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if body.Error.Code != code {
		t.Fatalf("code=%q want=%q (message %q)", body.Error.Code, code, body.Error.Message)
	}
	return body
}

func TestCustomerRiskFlow(t *testing.T) {
	r := newTestRouter(t, stub.NewFixed(types.RiskHigh, 0.9))

	rec := do(t, r, http.MethodPost, "/api/customers", map[string]any{
		"customer": map[string]any{"name": "Jane Doe", "email": "jane@example.com"},
		"features": map[string]any{"credit_score": 550, "income": 25000, "age": nil},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]any](t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", created)
	}
	if _, ok := created["risk_level"]; ok {
		t.Fatalf("unassessed customer should not carry risk_level: %v", created)
	}
	if feats, _ := created["features"].(map[string]any); len(feats) != 2 {
		t.Fatalf("features=%v", created["features"])
	}

	rec = do(t, r, http.MethodPost, "/api/mitigations", map[string]any{
		"customer_id": id, "risk_level": "High", "mitigation_type": "Action", "description": "call",
	})
	expectError(t, rec, http.StatusBadRequest, "invalid_state")

	rec = do(t, r, http.MethodPost, "/api/predictions/predict", map[string]any{
		"customer_id":       id,
		"customer_features": map[string]any{"credit_score": 550, "income": 25000},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status=%d body=%s", rec.Code, rec.Body.String())
	}
	pred := decode[map[string]any](t, rec)
	if pred["risk_level"] != "High" || pred["confidence_score"] != 0.9 {
		t.Fatalf("prediction=%v", pred)
	}

	rec = do(t, r, http.MethodGet, "/api/predictions/statistics", nil)
	stats := decode[map[string]any](t, rec)
	if stats["high_risk_count"] != float64(1) || stats["total_customers"] != float64(1) {
		t.Fatalf("stats=%v", stats)
	}

	rec = do(t, r, http.MethodPost, "/api/mitigations", map[string]any{
		"customer_id": id, "risk_level": "Low", "mitigation_type": "Action", "description": "call",
	})
	expectError(t, rec, http.StatusBadRequest, "invalid_state")

	rec = do(t, r, http.MethodPost, "/api/mitigations", map[string]any{
		"customer_id": id, "risk_level": "High", "mitigation_type": "Action", "description": "call",
		"due_date": time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mitigation status=%d body=%s", rec.Code, rec.Body.String())
	}
	mit := decode[map[string]any](t, rec)
	mid, _ := mit["id"].(string)
	if mit["status"] != "Pending" || mid == "" {
		t.Fatalf("mitigation=%v", mit)
	}

	rec = do(t, r, http.MethodPut, "/api/mitigations/"+mid+"/status?status=In%20Progress", nil)
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["status"] != "In Progress" {
		t.Fatalf("status update=%d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodPut, "/api/mitigations/"+mid+"/status", map[string]any{"status": "Completed"})
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["status"] != "Completed" {
		t.Fatalf("status update body=%d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, r, http.MethodPut, "/api/mitigations/"+mid+"/status?status=Done", nil)
	expectError(t, rec, http.StatusBadRequest, "invalid_status")
	rec = do(t, r, http.MethodPut, "/api/mitigations/"+mid+"/status", nil)
	expectError(t, rec, http.StatusBadRequest, "invalid_status")

	rec = do(t, r, http.MethodGet, "/api/mitigations?customer_id="+id, nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 1 {
		t.Fatalf("mitigations=%v", list)
	}
	rec = do(t, r, http.MethodGet, "/api/mitigations/due-soon", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("due-soon=%d %s", rec.Code, rec.Body.String())
	}
	if list := decode[[]map[string]any](t, rec); len(list) != 0 {
		t.Fatalf("completed mitigation should not be due: %v", list)
	}

	rec = do(t, r, http.MethodGet, "/api/predictions/high-risk", nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 1 {
		t.Fatalf("high-risk=%v", list)
	}
	rec = do(t, r, http.MethodGet, "/api/customers?risk_level=high", nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 1 || list[0]["risk_level"] != "High" {
		t.Fatalf("filtered=%v", list)
	}
	rec = do(t, r, http.MethodGet, "/api/customers/"+id+"/predictions?limit=1", nil)
	if list := decode[[]map[string]any](t, rec); len(list) != 1 {
		t.Fatalf("history=%v", list)
	}

	rec = do(t, r, http.MethodPut, "/api/customers/"+id, map[string]any{
		"customer": map[string]any{"phone": "555-0100"},
		"features": map[string]any{"income": 26000},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update=%d %s", rec.Code, rec.Body.String())
	}
	updated := decode[map[string]any](t, rec)
	if updated["name"] != "Jane Doe" || updated["phone"] != "555-0100" || updated["updated_at"] == nil {
		t.Fatalf("updated=%v", updated)
	}

	rec = do(t, r, http.MethodDelete, "/api/customers/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete=%d", rec.Code)
	}
	expectError(t, do(t, r, http.MethodGet, "/api/customers/"+id, nil), http.StatusNotFound, "not_found")
	expectError(t, do(t, r, http.MethodGet, "/api/mitigations/"+mid, nil), http.StatusNotFound, "not_found")
	expectError(t, do(t, r, http.MethodDelete, "/api/customers/"+id, nil), http.StatusNotFound, "not_found")
}

func TestMitigationDueDateFormats(t *testing.T) {
	r := newTestRouter(t, stub.NewFixed(types.RiskHigh, 0.9))

	rec := do(t, r, http.MethodPost, "/api/customers", map[string]any{"customer": map[string]any{"name": "Due Date"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rec.Code, rec.Body.String())
	}
	id, _ := decode[map[string]any](t, rec)["id"].(string)
	rec = do(t, r, http.MethodPost, "/api/predictions/predict", map[string]any{
		"customer_id": id, "customer_features": map[string]any{"age": 22},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("predict status=%d body=%s", rec.Code, rec.Body.String())
	}

	cases := []struct {
		in   any
		want any
	}{
		{"2026-10-20T00:00:00", "2026-10-20T00:00:00Z"},
		{"2026-10-20T09:30:00+02:00", "2026-10-20T07:30:00Z"},
		{"2026-10-21", "2026-10-21T00:00:00Z"},
		{nil, nil},
	}
	for _, tc := range cases {
		rec = do(t, r, http.MethodPost, "/api/mitigations", map[string]any{
			"customer_id": id, "risk_level": "High", "mitigation_type": "Monitor",
			"description": "watch", "due_date": tc.in,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("due_date %v: status=%d body=%s", tc.in, rec.Code, rec.Body.String())
		}
		if got := decode[map[string]any](t, rec)["due_date"]; got != tc.want {
			t.Fatalf("due_date %v: got %v want %v", tc.in, got, tc.want)
		}
	}

	rec = do(t, r, http.MethodPost, "/api/mitigations", map[string]any{
		"customer_id": id, "risk_level": "High", "mitigation_type": "Monitor",
		"description": "watch", "due_date": "next tuesday",
	})
	expectError(t, rec, http.StatusBadRequest, "invalid_request")
}

func TestRequestValidation(t *testing.T) {
	r := newTestRouter(t, stub.NewRules())

	expectError(t, do(t, r, http.MethodGet, "/api/customers?limit=501", nil), http.StatusBadRequest, "invalid_request")
	expectError(t, do(t, r, http.MethodGet, "/api/customers?limit=0", nil), http.StatusBadRequest, "invalid_request")
	expectError(t, do(t, r, http.MethodGet, "/api/customers?skip=-1", nil), http.StatusBadRequest, "invalid_request")
	expectError(t, do(t, r, http.MethodGet, "/api/customers?risk_level=Severe", nil), http.StatusBadRequest, "invalid_risk_level")
	expectError(t, do(t, r, http.MethodGet, "/api/customers/not-a-uuid", nil), http.StatusBadRequest, "invalid_id")
	expectError(t, do(t, r, http.MethodGet, "/api/predictions/statistics?scope=everyone", nil), http.StatusBadRequest, "invalid_request")
	expectError(t, do(t, r, http.MethodGet, "/api/mitigations?status=Done", nil), http.StatusBadRequest, "invalid_status")
	expectError(t, do(t, r, http.MethodGet, "/api/mitigations/due-soon?days=-2", nil), http.StatusBadRequest, "invalid_request")

	body := expectError(t, do(t, r, http.MethodPost, "/api/predictions/predict", map[string]any{"customer_id": "nope"}), http.StatusBadRequest, "invalid_request")
	if !strings.Contains(body.Error.Message, "customer_id") {
		t.Fatalf("message should name the field: %q", body.Error.Message)
	}
	expectError(t, do(t, r, http.MethodPost, "/api/customers", `{"customer":{"name":"  "}}`), http.StatusBadRequest, "invalid_value")
	expectError(t, do(t, r, http.MethodPost, "/api/customers", `{"customer":`), http.StatusBadRequest, "invalid_request")
	expectError(t, do(t, r, http.MethodPost, "/api/customers", `{"customer":{"name":"A"},"features":{"age":"old"}}`), http.StatusBadRequest, "invalid_request")
}

func TestPredictErrors(t *testing.T) {
	r := newTestRouter(t, stub.NewRules())

	rec := do(t, r, http.MethodPost, "/api/customers", map[string]any{"customer": map[string]any{"name": "Bo"}})
	id, _ := decode[map[string]any](t, rec)["id"].(string)

	expectError(t, do(t, r, http.MethodPost, "/api/predictions/predict", map[string]any{
		"customer_id": id, "customer_features": map[string]any{"age": "forty"},
	}), http.StatusBadRequest, "invalid_value")
	expectError(t, do(t, r, http.MethodPost, "/api/predictions/predict", map[string]any{
		"customer_id": "7b0e2f9c-8a8b-4d59-9a55-2c1f4f3f0b11", "customer_features": map[string]any{"age": 30},
	}), http.StatusNotFound, "not_found")
}

func TestPredictOracleTimeoutIsGatewayTimeout(t *testing.T) {
	orc := stub.NewFixed(types.RiskHigh, 0.9)
	orc.Delay = 2 * time.Second
	r := newTestRouter(t, orc)

	rec := do(t, r, http.MethodPost, "/api/customers", map[string]any{"customer": map[string]any{"name": "Slow"}})
	id, _ := decode[map[string]any](t, rec)["id"].(string)
	expectError(t, do(t, r, http.MethodPost, "/api/predictions/predict", map[string]any{
		"customer_id": id, "customer_features": map[string]any{"age": 30},
	}), http.StatusGatewayTimeout, "oracle_timeout")
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, stub.NewRules())

	for _, path := range []string{"/", "/healthcheck"} {
		rec := do(t, r, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["status"] != "ok" {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
	}
	rec := do(t, r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `custrisk_api_requests_total{method="GET",route="/healthcheck",status="200"} 1`) {
		t.Fatalf("metrics: %d\n%s", rec.Code, rec.Body.String())
	}
}
