package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuthorization(t *testing.T) {
	before := testutil.ToFloat64(authorizationOutcomes.WithLabelValues("failed", "finalize"))

	RecordAuthorization("failed", "finalize")

	assert.Equal(t, before+1, testutil.ToFloat64(authorizationOutcomes.WithLabelValues("failed", "finalize")))
}

func TestRecordLedgerWrite(t *testing.T) {
	ok := testutil.ToFloat64(ledgerWrites.WithLabelValues("success"))
	failed := testutil.ToFloat64(ledgerWrites.WithLabelValues("failure"))

	RecordLedgerWrite(true)
	RecordLedgerWrite(false)
	RecordLedgerWrite(false)

	assert.Equal(t, ok+1, testutil.ToFloat64(ledgerWrites.WithLabelValues("success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(ledgerWrites.WithLabelValues("failure")))
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	h := InstrumentHandler("/approvals/{wallet}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/approvals/{wallet}", "404"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/approvals/0xabc", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/approvals/{wallet}", "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveConfirmation("approve", 3*time.Second)
	RecordTransfer("success")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "approvals_chain_confirmation_duration_seconds"))
	assert.True(t, strings.Contains(body, `approvals_transfer_requests_total{outcome="success"}`))
}

func TestPushSendsRegistryToGateway(t *testing.T) {
	RecordTransfer("success")

	var method, path string
	var body []byte
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	require.NoError(t, Push(context.Background(), gateway.URL, "approvals"))

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/approvals", path)
	assert.Contains(t, string(body), "approvals_transfer_requests_total")
}

func TestPushReportsGatewayFailure(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := Push(context.Background(), gateway.URL, "approvals")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}
