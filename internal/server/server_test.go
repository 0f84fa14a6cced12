package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlens/backend/internal/extraction"
	"github.com/cardlens/backend/internal/insights"
	"github.com/cardlens/backend/internal/llm"
	"github.com/cardlens/backend/internal/model"
	"github.com/cardlens/backend/internal/store"
)

type staticLLM struct {
	response string
}

func (s *staticLLM) Name() string { return "static" }

func (s *staticLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.response, nil
}

type erroringLLM struct{}

func (e *erroringLLM) Name() string { return "erroring" }

func (e *erroringLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	return "", errors.New("upstream unavailable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts ...func(*Options)) (*Server, store.Store) {
	t.Helper()
	memStore := store.NewMemoryStore()
	logger := testLogger()

	options := Options{
		Store:     memStore,
		Extractor: extraction.NewService(nil, logger),
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&options)
	}

	srv := New(options)
	t.Cleanup(func() { srv.jobs.Stop() })
	return srv, memStore
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const statementCSV = `date,merchant,amount
2024-01-05,Netflix,15.99
2024-01-12,Woolworths,120.40
2024-01-20,Refund Credit,-20.00
`

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestAnalyzeCSV(t *testing.T) {
	srv, _ := newTestServer(t)

	buf, contentType := multipartUpload(t, "statement.csv", []byte(statementCSV), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	txs := decodeBody[[]model.Transaction](t, rec)
	require.Len(t, txs, 3)
	assert.Equal(t, "2024-01-05", txs[0].Date)
	assert.NotEmpty(t, txs[0].ID)
}

func TestAnalyzeMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("password", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
}

func TestAnalyzeInvalidDocument(t *testing.T) {
	srv, _ := newTestServer(t)

	buf, contentType := multipartUpload(t, "statement.xlsx", []byte{0x00, 0x01, 0x02}, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, string(extraction.ErrInvalidDocument), body["code"])
	assert.NotEmpty(t, body["detail"])
}

func TestAnalyzeScannedImage(t *testing.T) {
	srv, _ := newTestServer(t)

	buf, contentType := multipartUpload(t, "scan.png", []byte("\x89PNG\r\n\x1a\n..."), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, string(extraction.ErrScannedDocument), body["code"])
}

func TestAnalyzeModelRotationExhausted(t *testing.T) {
	logger := testLogger()
	extractor := extraction.NewLLMExtractor(&erroringLLM{}, []string{"model-a"}, logger)
	srv, _ := newTestServer(t, func(o *Options) {
		o.Extractor = extraction.NewService(extractor, logger)
	})

	buf, contentType := multipartUpload(t, "statement.txt", []byte("some statement text"), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, string(extraction.ErrAllModelsFailed), body["code"])
	assert.Contains(t, body["detail"], "All models failed. Last error:")
}

func TestAnalyzeCreatesSession(t *testing.T) {
	srv, memStore := newTestServer(t)

	buf, contentType := multipartUpload(t, "statement.csv", []byte(statementCSV),
		map[string]string{"session_label": "January"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := rec.Header().Get("X-Session-Id")
	require.NotEmpty(t, sessionID)

	session, err := memStore.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "January", session.Label)
	assert.Equal(t, 3, session.TxCount)
}

func TestAnalyzeAsync(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	buf, contentType := multipartUpload(t, "statement.csv", []byte(statementCSV),
		map[string]string{"async": "true"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decodeBody[extraction.Job](t, rec)
	require.NotEmpty(t, job.ID)

	deadline := time.After(5 * time.Second)
	for {
		rec := doJSON(t, handler, http.MethodGet, "/analyze/jobs/"+job.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[extraction.Job](t, rec)
		if got.Status == extraction.JobCompleted {
			assert.Len(t, got.Transactions, 3)
			return
		}
		require.NotEqual(t, extraction.JobFailed, got.Status, "job failed: %s", got.ErrorDetail)
		select {
		case <-deadline:
			t.Fatal("job did not complete in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAnalyzeJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/analyze/jobs/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/sessions", createSessionRequest{
		Label: "Jan",
		Transactions: []model.Transaction{
			{Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decodeBody[model.Session](t, rec)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, 1, session.TxCount)

	rec = doJSON(t, handler, http.MethodGet, "/api/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string]json.RawMessage](t, rec)
	var sessions []model.Session
	require.NoError(t, json.Unmarshal(list["sessions"], &sessions))
	assert.Len(t, sessions, 1)

	rec = doJSON(t, handler, http.MethodDelete, "/api/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionTransactionsFilter(t *testing.T) {
	srv, memStore := newTestServer(t)
	handler := srv.Handler()

	session := &model.Session{Label: "test"}
	require.NoError(t, memStore.CreateSession(context.Background(), session))
	require.NoError(t, memStore.ReplaceTransactions(context.Background(), session.ID, []model.Transaction{
		{ID: "a", Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
		{ID: "b", Date: "2024-02-10", Merchant: "Uber", Amount: 23.50, Category: model.CategoryTransport},
	}))

	rec := doJSON(t, handler, http.MethodGet,
		"/api/sessions/"+session.ID+"/transactions?start=2024-02-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Transactions []model.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, "Uber", body.Transactions[0].Merchant)
}

func TestExportCSVRoundTrip(t *testing.T) {
	srv, memStore := newTestServer(t)

	session := &model.Session{Label: "Jan 2024"}
	require.NoError(t, memStore.CreateSession(context.Background(), session))
	txs := []model.Transaction{
		{ID: "a", Date: "2024-01-05", Merchant: `Cafe "Blue", Sydney`, Amount: 18.50, Category: model.CategoryFood},
		{ID: "b", Date: "2024-01-12", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment, IsRecurring: true},
	}
	require.NoError(t, memStore.ReplaceTransactions(context.Background(), session.ID, txs))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/sessions/"+session.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Jan_2024.csv")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "date", "merchant", "amount", "category", "isRecurring"}, records[0])
	assert.Equal(t, []string{"a", "2024-01-05", `Cafe "Blue", Sydney`, "18.50", "Food", "false"}, records[1])
	assert.Equal(t, []string{"b", "2024-01-12", "Netflix", "15.99", "Entertainment", "true"}, records[2])
}

func TestAnalyticsSummaryInline(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/summary", analyticsRequest{
		Transactions: []model.Transaction{
			{Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
			{Date: "2024-01-12", Merchant: "Woolworths", Amount: 120.40, Category: model.CategoryFood},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalSpend float64 `json:"totalSpend"`
		Count      int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.InDelta(t, 136.39, summary.TotalSpend, 0.001)
	assert.Equal(t, 2, summary.Count)
}

func TestAnalyticsBySession(t *testing.T) {
	srv, memStore := newTestServer(t)

	session := &model.Session{Label: "test"}
	require.NoError(t, memStore.CreateSession(context.Background(), session))
	require.NoError(t, memStore.ReplaceTransactions(context.Background(), session.ID, []model.Transaction{
		{ID: "a", Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
	}))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/categories",
		analyticsRequest{SessionID: session.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var buckets []struct {
		Key   string  `json:"key"`
		Total float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buckets))
	require.Len(t, buckets, 1)
	assert.Equal(t, "Entertainment", buckets[0].Key)
}

func TestAnalyticsDuplicatesWindowParam(t *testing.T) {
	srv, _ := newTestServer(t)
	req := analyticsRequest{Transactions: []model.Transaction{
		{ID: "a", Date: "2024-01-10", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
		{ID: "b", Date: "2024-01-15", Merchant: "Netflix", Amount: 15.99, Category: model.CategoryEntertainment},
	}}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/duplicates", req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rec))

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/duplicates?window=7", req)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decodeBody[[]struct {
		Merchant string `json:"merchant"`
		Count    int    `json:"count"`
	}](t, rec)
	require.Len(t, alerts, 1)
	assert.Equal(t, 2, alerts[0].Count)
}

func TestAnalyticsUnknownMetric(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/velocity", analyticsRequest{
		Transactions: []model.Transaction{{Date: "2024-01-05", Merchant: "X", Amount: 1}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsMissingInput(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/summary", analyticsRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
}

func TestAnalyticsSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analytics/summary",
		analyticsRequest{SessionID: "missing"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInsightsFallbackWithoutProvider(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/insights", insightsRequest{
		Transactions: []model.Transaction{{Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["insights"], "## Analysis Failed")
}

func TestChat(t *testing.T) {
	srv, _ := newTestServer(t, func(o *Options) {
		o.Insights = insights.NewGenerator(&staticLLM{response: "You spent **15.99** on Netflix."}, "m", testLogger())
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", chatRequest{
		Transactions: []model.Transaction{{Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99}},
		Message:      "What did I spend on streaming?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "You spent **15.99** on Netflix.", body["reply"])
}

func TestChatRequiresMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/chat", chatRequest{
		Transactions: []model.Transaction{{Date: "2024-01-05", Merchant: "Netflix", Amount: 15.99}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPITokenAuth(t *testing.T) {
	srv, _ := newTestServer(t, func(o *Options) {
		o.APIToken = "secret-token"
	})
	handler := srv.Handler()

	// Health stays open for probes.
	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
