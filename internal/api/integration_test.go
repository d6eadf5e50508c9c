package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconciler/internal/api"
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// =============================================================================
// API Integration Tests
// =============================================================================
// These tests run the full stack against a real SQLite database:
// HTTP request → Router → Handlers → reconcile.Service → Storage → SQLite

const integrationStatement = `Posted Date,Details,Amount
01/10/2025,OFFICE SUPPLIES CO,-50.00
03/10/2025,BANK FEE,-3.50
05/10/2025,Client payment,1200.50
`

const integrationLedger = `{
  "QueryResponse": {
    "Purchase": [
      {"Id": "101", "TxnDate": "2025-10-01", "TotalAmt": 50.00, "PrivateNote": "office supplies", "EntityRef": {"name": "Office Supplies Co"}},
      {"Id": "301", "TxnDate": "2025-10-05", "TotalAmt": 99.00, "PrivateNote": "rent", "EntityRef": {"name": "Landlord"}}
    ],
    "Deposit": [
      {"Id": "201", "TxnDate": "2025-10-05", "TotalAmt": 1200.50, "PrivateNote": "Client payment"}
    ]
  }
}`

func createTestServer(t *testing.T) (*httptest.Server, *storage.Storage) {
	t.Helper()

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "api_integration.db"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := reconcile.NewService(reconcile.DefaultOptions(), store, logger)
	server := api.NewServer(api.DefaultConfig(), store, svc, logger)

	ts := httptest.NewServer(server.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})

	return ts, store
}

func postReconciliation(t *testing.T, ts *httptest.Server, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(dto.FieldStatement, "statement.csv")
	require.NoError(t, err)
	_, _ = io.WriteString(fw, integrationStatement)
	fw, err = mw.CreateFormFile(dto.FieldLedger, "ledger.json")
	require.NoError(t, err)
	_, _ = io.WriteString(fw, integrationLedger)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/reconciliations", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestAPI_Integration_HealthCheck(t *testing.T) {
	ts, _ := createTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health dto.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestAPI_Integration_ListReconciliations_Empty(t *testing.T) {
	ts, _ := createTestServer(t)

	resp, err := http.Get(ts.URL + "/api/reconciliations")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result dto.RunListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotNil(t, result.Runs, "runs should be an empty array, not null")
	assert.Equal(t, 0, result.TotalCount)
}

func TestAPI_Integration_ReconcileAndRead(t *testing.T) {
	ts, _ := createTestServer(t)

	// Run a reconciliation over the vendor query response format
	resp := postReconciliation(t, ts, map[string]string{
		dto.FieldAccountID: "35",
		dto.FieldStartDate: "2025-10-01",
		dto.FieldEndDate:   "2025-10-31",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created dto.ReconcileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.True(t, created.Saved)
	assert.Equal(t, 2, created.Report.Summary.TotalMatched)
	assert.Equal(t, 1, created.Report.Summary.UnmatchedLedger)
	assert.Equal(t, 1, created.Report.Summary.UnmatchedStatement)
	assert.InDelta(t, 66.67, created.Report.Summary.MatchRate, 0.01)
	assert.Empty(t, created.SkippedRows)

	// The stored run is listed
	listResp, err := http.Get(ts.URL + "/api/reconciliations?account_id=35")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list dto.RunListResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, created.RunID, list.Runs[0].ID)
	assert.Equal(t, storage.StatusNeedsReview, list.Runs[0].Status)

	// The full report round-trips through SQLite
	getResp, err := http.Get(ts.URL + "/api/reconciliations/" + created.RunID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var detail dto.RunDetailResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&detail))
	assert.Equal(t, "2025-10-01", detail.StartDate)
	assert.Equal(t, "0.01", detail.Tolerance)

	var stored struct {
		Matched []json.RawMessage `json:"matched_transactions"`
	}
	require.NoError(t, json.Unmarshal(detail.Report, &stored))
	assert.Len(t, stored.Matched, 2)

	// Leftovers are queryable per side
	unmatchedResp, err := http.Get(ts.URL + "/api/reconciliations/" + created.RunID + "/unmatched")
	require.NoError(t, err)
	defer unmatchedResp.Body.Close()
	var unmatched dto.UnmatchedListResponse
	require.NoError(t, json.NewDecoder(unmatchedResp.Body).Decode(&unmatched))
	require.Len(t, unmatched.Ledger, 1)
	assert.Equal(t, "301", unmatched.Ledger[0].SourceID)
	assert.Equal(t, "-99", unmatched.Ledger[0].Amount)
	require.Len(t, unmatched.Statement, 1)
	assert.Equal(t, "BANK FEE", unmatched.Statement[0].Description)

	// Stats reflect the run
	statsResp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	var stats dto.StatsResponse
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.NeedsReviewRuns)
}

func TestAPI_Integration_RejectsBadRequest(t *testing.T) {
	ts, store := createTestServer(t)

	resp := postReconciliation(t, ts, map[string]string{
		dto.FieldAccountID: "35",
		dto.FieldStartDate: "2025-10-31",
		dto.FieldEndDate:   "2025-10-01",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var apiErr dto.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, dto.ErrCodeValidation, apiErr.Code)

	runs, err := store.ListRuns(t.Context(), storage.RunFilters{})
	require.NoError(t, err)
	assert.Zero(t, runs.TotalCount)
}

func TestAPI_Integration_NotFound(t *testing.T) {
	ts, _ := createTestServer(t)

	resp, err := http.Get(ts.URL + "/api/reconciliations/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Integration_CORS(t *testing.T) {
	ts, _ := createTestServer(t)

	// Test preflight request
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/reconciliations", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
