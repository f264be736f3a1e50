// Package admin is the operator's read-side view over the approval ledger.
// It holds no state; every call re-reads and re-sorts the ledger.
package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kelsos/approvals/internal/models"
)

// Field is a sortable column.
type Field string

const (
	FieldWallet    Field = "walletAddress"
	FieldAmount    Field = "amount"
	FieldTimestamp Field = "timestamp"
	FieldStatus    Field = "status"
)

// Fields lists the sortable columns in display order.
var Fields = []Field{FieldWallet, FieldAmount, FieldTimestamp, FieldStatus}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sorter is the current sort selection.
type Sorter struct {
	Field     Field
	Direction Direction
}

// DefaultSorter shows the newest approvals first.
func DefaultSorter() Sorter {
	return Sorter{Field: FieldTimestamp, Direction: Desc}
}

// Toggle selects field. Selecting the current field flips the direction; a
// new field starts descending.
func (s Sorter) Toggle(field Field) Sorter {
	if s.Field == field {
		if s.Direction == Asc {
			return Sorter{Field: field, Direction: Desc}
		}
		return Sorter{Field: field, Direction: Asc}
	}
	return Sorter{Field: field, Direction: Desc}
}

// Arrow is the header indicator for the direction.
func (s Sorter) Arrow() string {
	if s.Direction == Asc {
		return "↑"
	}
	return "↓"
}

// ParseField accepts a field name case-insensitively, with "wallet" as a
// short form of walletAddress.
func ParseField(name string) (Field, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "walletaddress", "wallet", "wallet_address":
		return FieldWallet, true
	case "amount":
		return FieldAmount, true
	case "timestamp", "date":
		return FieldTimestamp, true
	case "status":
		return FieldStatus, true
	}
	return "", false
}

// ParseDirection accepts "asc" or "desc".
func ParseDirection(name string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "asc":
		return Asc, true
	case "desc":
		return Desc, true
	}
	return "", false
}

// Lister is the read side of the ledger.
type Lister interface {
	ListAll(ctx context.Context) ([]models.ApprovalRecord, error)
}

// View lists every record and sorts it.
func View(ctx context.Context, ledger Lister, s Sorter) ([]models.ApprovalRecord, error) {
	records, err := ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load approval data: %w", err)
	}
	return Sort(records, s), nil
}

// Sort returns a sorted copy of records. Equal keys keep their ledger order.
// Amounts compare numerically, timestamps chronologically (a missing
// timestamp is the earliest), other fields as lowercase strings.
func Sort(records []models.ApprovalRecord, s Sorter) []models.ApprovalRecord {
	out := make([]models.ApprovalRecord, len(records))
	copy(out, records)

	var amounts map[string]decimal.Decimal
	if s.Field == FieldAmount {
		amounts = make(map[string]decimal.Decimal, len(out))
		for _, r := range out {
			if d, err := decimal.NewFromString(strings.TrimSpace(r.Amount)); err == nil {
				amounts[r.Amount] = d
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], s.Field, amounts)
		if s.Direction == Asc {
			return c < 0
		}
		return c > 0
	})
	return out
}

func compare(a, b models.ApprovalRecord, field Field, amounts map[string]decimal.Decimal) int {
	switch field {
	case FieldAmount:
		da, okA := amounts[a.Amount]
		db, okB := amounts[b.Amount]
		switch {
		case okA && okB:
			return da.Cmp(db)
		case okA:
			return 1
		case okB:
			return -1
		default:
			return 0
		}
	case FieldTimestamp:
		return a.Timestamp.Compare(b.Timestamp)
	case FieldWallet:
		return strings.Compare(strings.ToLower(a.WalletAddress), strings.ToLower(b.WalletAddress))
	case FieldStatus:
		return strings.Compare(strings.ToLower(a.Status), strings.ToLower(b.Status))
	default:
		return 0
	}
}

// Summary aggregates a listing for the dashboard header.
type Summary struct {
	Count   int
	Wallets int
	Total   decimal.Decimal
}

// Summarize totals the approved amounts. Unparseable amounts are skipped.
func Summarize(records []models.ApprovalRecord) Summary {
	wallets := make(map[string]struct{}, len(records))
	total := decimal.Zero
	for _, r := range records {
		wallets[strings.ToLower(r.WalletAddress)] = struct{}{}
		if d, err := decimal.NewFromString(strings.TrimSpace(r.Amount)); err == nil {
			total = total.Add(d)
		}
	}
	return Summary{Count: len(records), Wallets: len(wallets), Total: total}
}

// TruncateAddress shortens an address or hash to 0x1234...abcd.
func TruncateAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// FormatTimestamp renders a record time in local time, or N/A when unknown.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// ExplorerTxURL links a transaction on the block explorer.
func ExplorerTxURL(explorer, txHash string) string {
	return strings.TrimRight(explorer, "/") + "/tx/" + txHash
}
