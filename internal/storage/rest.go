package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kelsos/approvals/internal/client"
	"github.com/kelsos/approvals/internal/ledger"
	"github.com/kelsos/approvals/internal/models"
)

// RESTStore keeps the ledger in a remote document collection. Rows are
// decoded with gjson because the timestamp encoding depends on the backend.
type RESTStore struct {
	api        *client.APIClient
	collection string
}

var _ ledger.Store = (*RESTStore)(nil)

// NewRESTStore uses the approvals collection of the given API.
func NewRESTStore(api *client.APIClient) *RESTStore {
	return &RESTStore{api: api, collection: ledger.Collection}
}

// Ping checks that the document API is reachable.
func (s *RESTStore) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}

type restEntry struct {
	WalletAddress string `json:"walletAddress"`
	Amount        string `json:"amount"`
	TxHash        string `json:"txHash"`
	Status        string `json:"status"`
}

func (s *RESTStore) Insert(ctx context.Context, entry ledger.Entry) (models.ApprovalRecord, error) {
	data, err := s.api.Post(ctx, s.collection, restEntry{
		WalletAddress: entry.WalletAddress,
		Amount:        entry.Amount,
		TxHash:        entry.TxHash,
		Status:        entry.Status,
	})
	if err != nil {
		return models.ApprovalRecord{}, err
	}

	doc := gjson.ParseBytes(data)
	if doc.IsArray() {
		doc = doc.Get("0")
	}
	if !doc.Exists() || doc.Get("id").String() == "" {
		return models.ApprovalRecord{}, fmt.Errorf("store returned no id for inserted approval")
	}
	return decodeRecord(doc)
}

func (s *RESTStore) List(ctx context.Context, filter ledger.Filter) ([]models.ApprovalRecord, error) {
	params := map[string]string{"select": "*"}
	if filter.WalletAddress != "" {
		params["walletAddress"] = "eq." + filter.WalletAddress
	}

	data, err := s.api.Get(ctx, s.collection, params)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("store returned malformed JSON")
	}

	rows := gjson.ParseBytes(data).Array()
	records := make([]models.ApprovalRecord, 0, len(rows))
	for _, row := range rows {
		record, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		// the store filter is authoritative, but never leak other wallets
		if filter.WalletAddress != "" && record.WalletAddress != filter.WalletAddress {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(doc gjson.Result) (models.ApprovalRecord, error) {
	ts, err := ParseTimestamp(doc.Get("timestamp"))
	if err != nil {
		return models.ApprovalRecord{}, fmt.Errorf("approval %s: %w", doc.Get("id").String(), err)
	}
	return models.ApprovalRecord{
		ID:            doc.Get("id").String(),
		WalletAddress: doc.Get("walletAddress").String(),
		Amount:        doc.Get("amount").String(),
		TxHash:        doc.Get("txHash").String(),
		Timestamp:     ts,
		Status:        doc.Get("status").String(),
	}, nil
}

// unix values above this are taken as milliseconds
const millisThreshold = 1e11

// ParseTimestamp materializes a stored timestamp as a point in time. It
// accepts RFC 3339 strings, unix seconds or milliseconds (numbers or numeric
// strings) and {seconds, nanoseconds} objects. A missing value yields the
// zero time.
func ParseTimestamp(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Null:
		// also the zero Result of a missing field
		return time.Time{}, nil
	case gjson.Number:
		return fromUnix(v.Float()), nil
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), nil
		}
		// PostgREST renders timestamptz without the T separator
		if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07", s); err == nil {
			return t.UTC(), nil
		}
		if n := gjson.Parse(s); n.Type == gjson.Number {
			return fromUnix(n.Float()), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	case gjson.JSON:
		secs := v.Get("seconds")
		if !secs.Exists() {
			secs = v.Get("_seconds")
		}
		nanos := v.Get("nanoseconds")
		if !nanos.Exists() {
			nanos = v.Get("_nanoseconds")
		}
		if !secs.Exists() {
			return time.Time{}, fmt.Errorf("unrecognized timestamp object %s", v.Raw)
		}
		return time.Unix(secs.Int(), nanos.Int()).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unrecognized timestamp %s", v.Raw)
	}
}

func fromUnix(f float64) time.Time {
	if f > millisThreshold {
		ms := int64(f)
		return time.UnixMilli(ms).UTC()
	}
	secs := int64(f)
	nanos := int64((f - float64(secs)) * 1e9)
	return time.Unix(secs, nanos).UTC()
}
