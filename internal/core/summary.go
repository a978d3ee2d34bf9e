package core

// Totals is the income/expense/net triple for a date range. Expense is
// net of repayments against still-active expenses; repayment rows are
// never counted as income.
type Totals struct {
	Expense int64 `json:"expense"`
	Income  int64 `json:"income"`
	Net     int64 `json:"net"`
}

// DaySummary is one calendar day's totals, used by the calendar view.
type DaySummary struct {
	Day     string `json:"day"`
	Expense int64  `json:"expense"`
	Income  int64  `json:"income"`
}

// InsightBucket is an aggregate grouped by one dimension value. ID and
// Name are nil for the unassigned (NULL foreign key) bucket.
type InsightBucket struct {
	ID    *string `json:"id"`
	Name  *string `json:"name"`
	Total int64   `json:"total"`
	Count int64   `json:"count"`
}

// Insights is the full breakdown response for a date range.
type Insights struct {
	ByCategory      []InsightBucket `json:"byCategory"`
	ByGroup         []InsightBucket `json:"byGroup"`
	ByPaymentMethod []InsightBucket `json:"byPaymentMethod"`
	Totals          Totals          `json:"totals"`
}

// NetAmount derives the outstanding amount of an expense after active
// repayments. The result may go negative: overpayment is not clamped.
func NetAmount(amount, repaymentTotal int64) int64 {
	return amount - repaymentTotal
}
