package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// repaymentTotalExpr derives, per expense row, the sum of its active
// repayments. Non-expense rows get zero. The user_id predicate keeps a
// forged cross-user reference from ever affecting another user's totals.
const repaymentTotalExpr = `
	CASE WHEN t.type = 'expense' THEN COALESCE((
		SELECT SUM(r.amount) FROM transactions r
		WHERE r.related_transaction_id = t.id
		  AND r.user_id = t.user_id
		  AND r.type = 'repayment'
		  AND r.deleted_at IS NULL
	), 0) ELSE 0 END`

// viewSelect is the shared projection for transaction reads: raw columns,
// display names via outer joins (archived or missing refs come back NULL)
// and the derived repayment total.
const viewSelect = `
	SELECT t.id, t.user_id, t.type, t.amount, t.date,
	       t.category_id, t.group_id, t.payment_method_id, t.income_source_id,
	       t.lending_source_id, t.savings_account_id, t.related_transaction_id,
	       t.note, t.merchant, t.sort_order, t.created_at, t.updated_at, t.deleted_at,
	       c.name, g.name, pm.name, isrc.name, ls.name,` + repaymentTotalExpr + `
	FROM transactions t
	LEFT JOIN categories c ON t.category_id = c.id
	LEFT JOIN groups g ON t.group_id = g.id
	LEFT JOIN payment_methods pm ON t.payment_method_id = pm.id
	LEFT JOIN income_sources isrc ON t.income_source_id = isrc.id
	LEFT JOIN lending_sources ls ON t.lending_source_id = ls.id`

func scanTransactionView(row interface{ Scan(...any) error }) (core.TransactionView, error) {
	var v core.TransactionView
	err := row.Scan(
		&v.ID, &v.UserID, &v.Type, &v.Amount, &v.Date,
		&v.CategoryID, &v.GroupID, &v.PaymentMethodID, &v.IncomeSourceID,
		&v.LendingSourceID, &v.SavingsAccountID, &v.RelatedTransactionID,
		&v.Note, &v.Merchant, &v.SortOrder, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt,
		&v.CategoryName, &v.GroupName, &v.PaymentMethodName, &v.IncomeSourceName,
		&v.LendingSourceName, &v.RepaymentTotal,
	)
	if err != nil {
		return core.TransactionView{}, err
	}
	v.NetAmount = core.NetAmount(v.Amount, v.RepaymentTotal)
	return v, nil
}

// TransactionFilter narrows a listing. Zero values mean "no filter".
type TransactionFilter struct {
	From            string
	To              string
	Type            string
	CategoryID      string
	GroupID         string
	PaymentMethodID string
	NeedsReview     bool
	Query           string
	Limit           int
	Cursor          string
}

// ListTransactions returns a filtered page of active transactions,
// newest day first with same-day rows in manual sort order, plus range
// totals recomputed from the raw rows.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) (core.TransactionPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := viewSelect + ` WHERE t.user_id = ? AND t.deleted_at IS NULL`
	args := []any{userID}

	if f.From != "" {
		query += ` AND date(t.date) >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND date(t.date) <= ?`
		args = append(args, f.To)
	}
	if f.Type != "" && f.Type != "all" {
		query += ` AND t.type = ?`
		args = append(args, f.Type)
	}
	if f.CategoryID != "" {
		query += ` AND t.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.GroupID != "" {
		query += ` AND t.group_id = ?`
		args = append(args, f.GroupID)
	}
	if f.PaymentMethodID != "" {
		query += ` AND t.payment_method_id = ?`
		args = append(args, f.PaymentMethodID)
	}
	if f.NeedsReview {
		query += ` AND (t.category_id IS NULL OR t.group_id IS NULL OR t.payment_method_id IS NULL)`
	}
	if f.Query != "" {
		query += ` AND (t.note LIKE ? OR t.merchant LIKE ?)`
		like := "%" + f.Query + "%"
		args = append(args, like, like)
	}
	if f.Cursor != "" {
		query += ` AND t.id < ?`
		args = append(args, f.Cursor)
	}

	query += ` ORDER BY date(t.date) DESC, t.sort_order ASC, t.created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := []core.TransactionView{}
	for rows.Next() {
		v, err := scanTransactionView(rows)
		if err != nil {
			return core.TransactionPage{}, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return core.TransactionPage{}, fmt.Errorf("iterate transactions: %w", err)
	}

	totals, err := r.rangeTotals(ctx, userID, f.From, f.To)
	if err != nil {
		return core.TransactionPage{}, err
	}

	page := core.TransactionPage{Transactions: items, Totals: totals}
	if len(items) == limit {
		last := items[len(items)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// rangeTotals computes income/expense/net for a date range over active
// rows. Expense is net of repayments whose parent expense is still
// active; repayment rows are never counted as income.
func (r *Repository) rangeTotals(ctx context.Context, userID, from, to string) (core.Totals, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount
			                  WHEN t.type = 'repayment' AND EXISTS (
			                      SELECT 1 FROM transactions e
			                      WHERE e.id = t.related_transaction_id
			                        AND e.user_id = t.user_id AND e.deleted_at IS NULL
			                  ) THEN -t.amount
			                  ELSE 0 END), 0) AS expense_total,
			COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount ELSE 0 END), 0) AS income_total
		FROM transactions t
		WHERE t.user_id = ? AND t.deleted_at IS NULL`
	args := []any{userID}

	if from != "" {
		query += ` AND date(t.date) >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date(t.date) <= ?`
		args = append(args, to)
	}

	var totals core.Totals
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&totals.Expense, &totals.Income); err != nil {
		return core.Totals{}, fmt.Errorf("range totals: %w", err)
	}
	totals.Net = totals.Income - totals.Expense
	return totals, nil
}

// NewTransaction carries the fields accepted when creating a ledger row.
type NewTransaction struct {
	Type                 core.TransactionType
	Amount               int64
	Date                 string
	CategoryID           *string
	GroupID              *string
	PaymentMethodID      *string
	IncomeSourceID       *string
	LendingSourceID      *string
	SavingsAccountID     *string
	RelatedTransactionID *string
	Note                 *string
	Merchant             *string
}

// CreateTransaction inserts a ledger row, appending it to the end of its
// day's manual order. Repayments must reference an owned, active expense.
func (r *Repository) CreateTransaction(ctx context.Context, userID string, in NewTransaction) (core.TransactionView, error) {
	if in.Type == "" {
		in.Type = core.TypeExpense
	}
	if !in.Type.Valid() {
		return core.TransactionView{}, core.ErrInvalidType
	}
	if err := core.ValidateAmount(in.Amount); err != nil {
		return core.TransactionView{}, err
	}
	if in.Date == "" {
		in.Date = time.Now().UTC().Format(time.RFC3339)
	}

	if in.Type == core.TypeRepayment {
		if in.RelatedTransactionID == nil {
			return core.TransactionView{}, core.ErrNotFound
		}
		if err := r.checkRelatedExpense(ctx, userID, *in.RelatedTransactionID); err != nil {
			return core.TransactionView{}, err
		}
	}

	// New rows append to the end of their day.
	var sortOrder int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sort_order), 0) + 1 FROM transactions
		WHERE user_id = ? AND date(date) = date(?) AND deleted_at IS NULL`,
		userID, in.Date).Scan(&sortOrder); err != nil {
		return core.TransactionView{}, fmt.Errorf("next sort order: %w", err)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, date,
			category_id, group_id, payment_method_id, income_source_id,
			lending_source_id, savings_account_id, related_transaction_id,
			note, merchant, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.Type, in.Amount, in.Date,
		in.CategoryID, in.GroupID, in.PaymentMethodID, in.IncomeSourceID,
		in.LendingSourceID, in.SavingsAccountID, in.RelatedTransactionID,
		in.Note, in.Merchant, sortOrder)
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("insert transaction: %w", err)
	}

	return r.GetTransaction(ctx, userID, id)
}

// checkRelatedExpense verifies that a repayment target is an active
// expense owned by the same user.
func (r *Repository) checkRelatedExpense(ctx context.Context, userID, expenseID string) error {
	var parent string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM transactions
		WHERE id = ? AND user_id = ? AND type = 'expense' AND deleted_at IS NULL`,
		expenseID, userID).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check related expense: %w", err)
	}
	return nil
}

// GetTransaction fetches one active transaction with resolved names and
// derived amounts.
func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (core.TransactionView, error) {
	row := r.db.QueryRowContext(ctx, viewSelect+` WHERE t.id = ? AND t.user_id = ? AND t.deleted_at IS NULL`, id, userID)
	v, err := scanTransactionView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransactionView{}, core.ErrNotFound
	}
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("get transaction: %w", err)
	}
	return v, nil
}

// TransactionUpdate is a partial update. Nil fields are untouched; for
// the nullable reference and text fields an explicit empty string clears
// the column to NULL.
type TransactionUpdate struct {
	Type                 *core.TransactionType
	Amount               *int64
	Date                 *string
	CategoryID           *string
	GroupID              *string
	PaymentMethodID      *string
	IncomeSourceID       *string
	LendingSourceID      *string
	RelatedTransactionID *string
	Note                 *string
	Merchant             *string
	SortOrder            *int64
}

// UpdateTransaction applies a partial update to an owned, active row and
// returns the refreshed view. sort_order is only recomputed when
// explicitly provided.
func (r *Repository) UpdateTransaction(ctx context.Context, userID, id string, upd TransactionUpdate) (core.TransactionView, error) {
	if _, err := r.GetTransaction(ctx, userID, id); err != nil {
		return core.TransactionView{}, err
	}

	// Retargeting a repayment goes through the same ownership check as
	// creating one. An empty string still clears the reference.
	if upd.RelatedTransactionID != nil && *upd.RelatedTransactionID != "" {
		if err := r.checkRelatedExpense(ctx, userID, *upd.RelatedTransactionID); err != nil {
			return core.TransactionView{}, err
		}
	}

	sets := []string{}
	args := []any{}

	if upd.Type != nil {
		if !upd.Type.Valid() {
			return core.TransactionView{}, core.ErrInvalidType
		}
		sets = append(sets, "type = ?")
		args = append(args, *upd.Type)
	}
	if upd.Amount != nil {
		if err := core.ValidateAmount(*upd.Amount); err != nil {
			return core.TransactionView{}, err
		}
		sets = append(sets, "amount = ?")
		args = append(args, *upd.Amount)
	}
	if upd.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *upd.Date)
	}

	nullable := []struct {
		col string
		val *string
	}{
		{"category_id", upd.CategoryID},
		{"group_id", upd.GroupID},
		{"payment_method_id", upd.PaymentMethodID},
		{"income_source_id", upd.IncomeSourceID},
		{"lending_source_id", upd.LendingSourceID},
		{"related_transaction_id", upd.RelatedTransactionID},
		{"note", upd.Note},
		{"merchant", upd.Merchant},
	}
	for _, f := range nullable {
		if f.val != nil {
			sets = append(sets, f.col+" = NULLIF(?, '')")
			args = append(args, *f.val)
		}
	}

	if upd.SortOrder != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *upd.SortOrder)
	}

	if len(sets) == 0 {
		return core.TransactionView{}, core.ErrNoUpdates
	}

	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id, userID)

	query := `UPDATE transactions SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return core.TransactionView{}, fmt.Errorf("update transaction: %w", err)
	}

	return r.GetTransaction(ctx, userID, id)
}

// SoftDeleteTransaction marks a row deleted. Repayments referencing a
// deleted expense are left in place; they drop out of listings through
// their parent becoming invisible, not by cascade.
func (r *Repository) SoftDeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = datetime('now')
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ReorderUpdate repositions one transaction. A non-nil Date moves the
// row to that day (cross-date drag adopts the drop target's date).
type ReorderUpdate struct {
	ID        string  `json:"id"`
	SortOrder int64   `json:"sort_order"`
	Date      *string `json:"date,omitempty"`
}

// ReorderTransactions applies a batch of manual-order updates in one
// transaction: either every row moves or none does. An id that is
// missing or not owned aborts the whole batch with core.ErrNotFound.
func (r *Repository) ReorderTransactions(ctx context.Context, userID string, updates []ReorderUpdate) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			var res sql.Result
			var err error
			if u.Date != nil {
				res, err = tx.ExecContext(ctx, `
					UPDATE transactions SET sort_order = ?, date = ?, updated_at = datetime('now')
					WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
					u.SortOrder, *u.Date, u.ID, userID)
			} else {
				res, err = tx.ExecContext(ctx, `
					UPDATE transactions SET sort_order = ?, updated_at = datetime('now')
					WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
					u.SortOrder, u.ID, userID)
			}
			if err != nil {
				return fmt.Errorf("reorder transaction %s: %w", u.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 0 {
				return core.ErrNotFound
			}
		}
		return nil
	})
}

// GetTransactionDetails returns a transaction with its active repayments.
func (r *Repository) GetTransactionDetails(ctx context.Context, userID, id string) (core.TransactionDetails, error) {
	view, err := r.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.TransactionDetails{}, err
	}

	details := core.TransactionDetails{TransactionView: view, Repayments: []core.Transaction{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, date,
		       category_id, group_id, payment_method_id, income_source_id,
		       lending_source_id, savings_account_id, related_transaction_id,
		       note, merchant, sort_order, created_at, updated_at, deleted_at
		FROM transactions
		WHERE related_transaction_id = ? AND user_id = ? AND type = 'repayment' AND deleted_at IS NULL
		ORDER BY date DESC, created_at DESC`,
		id, userID)
	if err != nil {
		return core.TransactionDetails{}, fmt.Errorf("list repayments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Date,
			&t.CategoryID, &t.GroupID, &t.PaymentMethodID, &t.IncomeSourceID,
			&t.LendingSourceID, &t.SavingsAccountID, &t.RelatedTransactionID,
			&t.Note, &t.Merchant, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
		); err != nil {
			return core.TransactionDetails{}, fmt.Errorf("scan repayment: %w", err)
		}
		details.Repayments = append(details.Repayments, t)
	}
	if err := rows.Err(); err != nil {
		return core.TransactionDetails{}, fmt.Errorf("iterate repayments: %w", err)
	}
	return details, nil
}

// DaySummaries groups active rows by calendar day for the range, with
// the same net-expense and income semantics as range totals.
func (r *Repository) DaySummaries(ctx context.Context, userID, from, to string) ([]core.DaySummary, error) {
	query := `
		SELECT date(t.date) AS day,
			COALESCE(SUM(CASE WHEN t.type = 'expense' THEN t.amount
			                  WHEN t.type = 'repayment' AND EXISTS (
			                      SELECT 1 FROM transactions e
			                      WHERE e.id = t.related_transaction_id
			                        AND e.user_id = t.user_id AND e.deleted_at IS NULL
			                  ) THEN -t.amount
			                  ELSE 0 END), 0) AS expense,
			COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount ELSE 0 END), 0) AS income
		FROM transactions t
		WHERE t.user_id = ? AND t.deleted_at IS NULL`
	args := []any{userID}

	if from != "" {
		query += ` AND date(t.date) >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date(t.date) <= ?`
		args = append(args, to)
	}
	query += ` GROUP BY date(t.date) ORDER BY day`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("day summaries: %w", err)
	}
	defer rows.Close()

	summaries := []core.DaySummary{}
	for rows.Next() {
		var s core.DaySummary
		if err := rows.Scan(&s.Day, &s.Expense, &s.Income); err != nil {
			return nil, fmt.Errorf("scan day summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day summaries: %w", err)
	}
	return summaries, nil
}

// Insights breaks a range down by category, group and payment method.
// Expense rows contribute their net amount so repaid portions never
// inflate a bucket; the NULL-keyed bucket collects unassigned rows.
func (r *Repository) Insights(ctx context.Context, userID, from, to string, txType core.TransactionType) (core.Insights, error) {
	if txType == "" {
		txType = core.TypeExpense
	}

	insights := core.Insights{}
	var err error
	if insights.ByCategory, err = r.insightBuckets(ctx, "categories", "category_id", userID, from, to, txType); err != nil {
		return core.Insights{}, err
	}
	if insights.ByGroup, err = r.insightBuckets(ctx, "groups", "group_id", userID, from, to, txType); err != nil {
		return core.Insights{}, err
	}
	if insights.ByPaymentMethod, err = r.insightBuckets(ctx, "payment_methods", "payment_method_id", userID, from, to, txType); err != nil {
		return core.Insights{}, err
	}
	if insights.Totals, err = r.rangeTotals(ctx, userID, from, to); err != nil {
		return core.Insights{}, err
	}
	return insights, nil
}

// insightBuckets aggregates net amounts per dimension value. dim and fk
// come from a closed caller-side set, never user input.
func (r *Repository) insightBuckets(ctx context.Context, dim, fk, userID, from, to string, txType core.TransactionType) ([]core.InsightBucket, error) {
	query := fmt.Sprintf(`
		SELECT d.id, d.name, SUM(t.amount - (%s)) AS total, COUNT(*) AS count
		FROM transactions t
		LEFT JOIN %s d ON t.%s = d.id
		WHERE t.user_id = ? AND t.deleted_at IS NULL AND t.type = ?`,
		repaymentTotalExpr, dim, fk)
	args := []any{userID, txType}

	if from != "" {
		query += ` AND date(t.date) >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date(t.date) <= ?`
		args = append(args, to)
	}
	query += fmt.Sprintf(` GROUP BY t.%s ORDER BY total DESC`, fk)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insights by %s: %w", dim, err)
	}
	defer rows.Close()

	buckets := []core.InsightBucket{}
	for rows.Next() {
		var b core.InsightBucket
		if err := rows.Scan(&b.ID, &b.Name, &b.Total, &b.Count); err != nil {
			return nil, fmt.Errorf("scan insight bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insight buckets: %w", err)
	}
	return buckets, nil
}

// ListLendingRepayments returns the active repayments recorded against a
// lending source, newest first, with the repaid expense's merchant and
// note for display.
func (r *Repository) ListLendingRepayments(ctx context.Context, userID, lendingSourceID string) ([]core.RepaymentView, error) {
	if _, err := r.GetRef(ctx, RefLendingSources, userID, lendingSourceID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.type, t.amount, t.date,
		       t.category_id, t.group_id, t.payment_method_id, t.income_source_id,
		       t.lending_source_id, t.savings_account_id, t.related_transaction_id,
		       t.note, t.merchant, t.sort_order, t.created_at, t.updated_at, t.deleted_at,
		       ls.name, e.merchant, e.note
		FROM transactions t
		LEFT JOIN lending_sources ls ON t.lending_source_id = ls.id
		LEFT JOIN transactions e ON t.related_transaction_id = e.id
		WHERE t.user_id = ? AND t.lending_source_id = ? AND t.type = 'repayment' AND t.deleted_at IS NULL
		ORDER BY t.date DESC, t.created_at DESC`,
		userID, lendingSourceID)
	if err != nil {
		return nil, fmt.Errorf("list lending repayments: %w", err)
	}
	defer rows.Close()

	repayments := []core.RepaymentView{}
	for rows.Next() {
		var v core.RepaymentView
		if err := rows.Scan(
			&v.ID, &v.UserID, &v.Type, &v.Amount, &v.Date,
			&v.CategoryID, &v.GroupID, &v.PaymentMethodID, &v.IncomeSourceID,
			&v.LendingSourceID, &v.SavingsAccountID, &v.RelatedTransactionID,
			&v.Note, &v.Merchant, &v.SortOrder, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt,
			&v.LendingSourceName, &v.ExpenseMerchant, &v.ExpenseNote,
		); err != nil {
			return nil, fmt.Errorf("scan lending repayment: %w", err)
		}
		repayments = append(repayments, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lending repayments: %w", err)
	}
	return repayments, nil
}
