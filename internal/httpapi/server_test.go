package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/approvals/internal/chaintest"
	"github.com/kelsos/approvals/internal/httpapi"
	"github.com/kelsos/approvals/internal/ledger"
	"github.com/kelsos/approvals/internal/models"
)

const (
	hash1 = "0x0000000000000000000000000000000000000000000000000000000000001001"
	hash2 = "0x0000000000000000000000000000000000000000000000000000000000001002"
	hash3 = "0x0000000000000000000000000000000000000000000000000000000000001003"
)

func seeded(t *testing.T) *ledger.Ledger {
	t.Helper()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := ledger.NewMemoryStore().WithClock(func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	})
	l := ledger.New(store)
	ctx := context.Background()
	for _, e := range []ledger.Entry{
		{WalletAddress: chaintest.Alice.Hex(), Amount: "9.5", TxHash: hash1},
		{WalletAddress: chaintest.Bob.Hex(), Amount: "10.2", TxHash: hash2},
		{WalletAddress: chaintest.Alice.Hex(), Amount: "2", TxHash: hash3},
	} {
		_, err := l.Record(ctx, e)
		require.NoError(t, err)
	}
	return l
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, httpapi.ListResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body httpapi.ListResponse
	if rec.Code == http.StatusOK && strings.HasPrefix(path, "/approvals") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func amounts(records []models.ApprovalRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Amount)
	}
	return out
}

func TestListDefaultsToNewestFirst(t *testing.T) {
	h := httpapi.NewServer(seeded(t), nil).Handler()

	rec, body := get(t, h, "/approvals")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"2", "10.2", "9.5"}, amounts(body.Records))
	assert.Equal(t, 3, body.Summary.Count)
	assert.Equal(t, 2, body.Summary.Wallets)
	assert.Equal(t, "21.7", body.Summary.Total)
	require.NotNil(t, body.Sort)
	assert.Equal(t, "timestamp", string(body.Sort.Field))
}

func TestListSortsAmountsNumerically(t *testing.T) {
	h := httpapi.NewServer(seeded(t), nil).Handler()

	_, body := get(t, h, "/approvals?sort=amount&dir=asc")

	assert.Equal(t, []string{"2", "9.5", "10.2"}, amounts(body.Records))
}

func TestListRejectsUnknownSort(t *testing.T) {
	h := httpapi.NewServer(seeded(t), nil).Handler()

	rec, _ := get(t, h, "/approvals?sort=color")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, h, "/approvals?dir=sideways")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListByWalletNormalisesAddress(t *testing.T) {
	h := httpapi.NewServer(seeded(t), nil).Handler()

	rec, body := get(t, h, "/approvals/"+strings.ToLower(chaintest.Alice.Hex()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Records, 2)
	for _, r := range body.Records {
		assert.Equal(t, chaintest.Alice.Hex(), r.WalletAddress)
	}

	rec, _ = get(t, h, "/approvals/not-an-address")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListByWalletWithoutRecordsIsEmptyArray(t *testing.T) {
	h := httpapi.NewServer(seeded(t), nil).Handler()

	rec, _ := get(t, h, "/approvals/"+chaintest.Owner.Hex())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"records":[]`)
}

type failingStore struct{}

func (failingStore) Insert(context.Context, ledger.Entry) (models.ApprovalRecord, error) {
	return models.ApprovalRecord{}, errors.New("offline")
}

func (failingStore) List(context.Context, ledger.Filter) ([]models.ApprovalRecord, error) {
	return nil, errors.New("offline")
}

func TestLedgerFailureIsBadGateway(t *testing.T) {
	h := httpapi.NewServer(ledger.New(failingStore{}), nil).Handler()

	rec, _ := get(t, h, "/approvals")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "load approval data")
}

func TestHealthz(t *testing.T) {
	healthy := true
	check := func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("wallet provider unreachable")
	}
	h := httpapi.NewServer(seeded(t), check).Handler()

	rec, _ := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "wallet provider unreachable")
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	h := httpapi.NewServer(seeded(t), nil).Handler()
	get(t, h, "/approvals")

	rec, _ := get(t, h, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `approvals_http_requests_total{method="GET",route="/approvals",status="200"}`)
}
