package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	// OtherBucket names the synthetic bucket holding the long tail.
	OtherBucket = "Other"
	topN        = 3
)

type SubCategory struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
}

type CategoryBucket struct {
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Percentage  float64         `json:"percentage"`
	IsAggregate bool            `json:"isAggregate"`
	Members     []SubCategory   `json:"members,omitempty"`
}

// Window bounds the entries an aggregate considers. Entries after Today are
// excluded; LookbackMonths > 0 also drops entries older than that many
// months before Today.
type Window struct {
	Today          core.Date
	LookbackMonths int
}

func (w Window) contains(date core.Date) bool {
	if date.After(w.Today) {
		return false
	}
	if w.LookbackMonths > 0 {
		from := core.Date{Time: w.Today.AddDate(0, -w.LookbackMonths, 0)}
		if date.Before(from) {
			return false
		}
	}
	return true
}

// Aggregate sums absolute amounts of kind per category within w and
// returns buckets sorted by amount, largest first. With more than three
// categories, those at or above the third-largest amount are kept and the
// rest collapse into an Other bucket. A zero total yields 0% everywhere.
func Aggregate(txs []core.Transaction, kind core.Kind, w Window) []CategoryBucket {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Kind != kind || !w.contains(tx.Date) {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount.Abs())
	}
	if len(totals) == 0 {
		return nil
	}

	ranked := make([]SubCategory, 0, len(totals))
	total := decimal.Zero
	for name, amount := range totals {
		ranked = append(ranked, SubCategory{Name: name, Amount: amount})
		total = total.Add(amount)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Amount.Cmp(ranked[j].Amount); c != 0 {
			return c > 0
		}
		return ranked[i].Name < ranked[j].Name
	})
	for i := range ranked {
		ranked[i].Percentage = percentage(ranked[i].Amount, total)
	}

	if len(ranked) <= topN {
		return toBuckets(ranked)
	}

	threshold := ranked[topN-1].Amount
	cut := topN
	for cut < len(ranked) && ranked[cut].Amount.GreaterThanOrEqual(threshold) {
		cut++
	}
	buckets := toBuckets(ranked[:cut])
	if cut == len(ranked) {
		return buckets
	}

	other := CategoryBucket{Name: OtherBucket, Amount: decimal.Zero, IsAggregate: true}
	for _, sub := range ranked[cut:] {
		other.Amount = other.Amount.Add(sub.Amount)
		other.Members = append(other.Members, sub)
	}
	other.Percentage = percentage(other.Amount, total)
	return append(buckets, other)
}

func toBuckets(subs []SubCategory) []CategoryBucket {
	buckets := make([]CategoryBucket, len(subs))
	for i, sub := range subs {
		buckets[i] = CategoryBucket{Name: sub.Name, Amount: sub.Amount, Percentage: sub.Percentage}
	}
	return buckets
}

func percentage(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
