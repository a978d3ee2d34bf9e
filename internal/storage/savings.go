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

// balanceExpr derives an account balance from its active transaction
// log: deposits count positive, withdrawals negative. Never stored.
const balanceExpr = `
	COALESCE((
		SELECT SUM(CASE
			WHEN t.type = 'savings_deposit' THEN t.amount
			WHEN t.type = 'savings_withdrawal' THEN -t.amount
			ELSE 0 END)
		FROM transactions t
		WHERE t.savings_account_id = sa.id AND t.deleted_at IS NULL
	), 0)`

const savingsSelect = `
	SELECT sa.id, sa.user_id, sa.name, sa.target_amount, sa.color, sa.is_active,
	       sa.created_at, sa.updated_at,` + balanceExpr + ` AS balance,
	       (SELECT COUNT(*) FROM transactions t
	        WHERE t.savings_account_id = sa.id AND t.deleted_at IS NULL) AS transaction_count
	FROM savings_accounts sa`

func scanSavingsAccountView(row interface{ Scan(...any) error }) (core.SavingsAccountView, error) {
	var v core.SavingsAccountView
	var active int64
	err := row.Scan(&v.ID, &v.UserID, &v.Name, &v.TargetAmount, &v.Color, &active,
		&v.CreatedAt, &v.UpdatedAt, &v.Balance, &v.TransactionCount)
	if err != nil {
		return core.SavingsAccountView{}, err
	}
	v.IsActive = active == 1
	return v, nil
}

// ListSavingsAccounts returns the user's active accounts with derived
// balances, newest first, and the sum of those balances.
func (r *Repository) ListSavingsAccounts(ctx context.Context, userID string) ([]core.SavingsAccountView, int64, error) {
	rows, err := r.db.QueryContext(ctx, savingsSelect+`
		WHERE sa.user_id = ? AND sa.is_active = 1
		ORDER BY sa.created_at DESC`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("list savings accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.SavingsAccountView{}
	var total int64
	for rows.Next() {
		v, err := scanSavingsAccountView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan savings account: %w", err)
		}
		accounts = append(accounts, v)
		total += v.Balance
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate savings accounts: %w", err)
	}
	return accounts, total, nil
}

// GetSavingsAccount fetches one owned account (active or archived) with
// its derived balance.
func (r *Repository) GetSavingsAccount(ctx context.Context, userID, id string) (core.SavingsAccountView, error) {
	row := r.db.QueryRowContext(ctx, savingsSelect+` WHERE sa.id = ? AND sa.user_id = ?`, id, userID)
	v, err := scanSavingsAccountView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsAccountView{}, core.ErrNotFound
	}
	if err != nil {
		return core.SavingsAccountView{}, fmt.Errorf("get savings account: %w", err)
	}
	return v, nil
}

// CreateSavingsAccount creates a named goal account.
func (r *Repository) CreateSavingsAccount(ctx context.Context, userID, name string, targetAmount *int64, color *string) (core.SavingsAccountView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.SavingsAccountView{}, core.ErrNameRequired
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO savings_accounts (id, user_id, name, target_amount, color)
		VALUES (?, ?, ?, ?, ?)`,
		id, userID, name, targetAmount, color)
	if err != nil {
		return core.SavingsAccountView{}, fmt.Errorf("create savings account: %w", err)
	}
	return r.GetSavingsAccount(ctx, userID, id)
}

// SavingsAccountUpdate is a partial account update; nil fields are
// untouched.
type SavingsAccountUpdate struct {
	Name         *string
	TargetAmount *int64
	Color        *string
	IsActive     *bool
}

// UpdateSavingsAccount applies a partial update to an owned account.
func (r *Repository) UpdateSavingsAccount(ctx context.Context, userID, id string, upd SavingsAccountUpdate) (core.SavingsAccountView, error) {
	if _, err := r.GetSavingsAccount(ctx, userID, id); err != nil {
		return core.SavingsAccountView{}, err
	}

	sets := []string{}
	args := []any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return core.SavingsAccountView{}, core.ErrNameRequired
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if upd.TargetAmount != nil {
		sets = append(sets, "target_amount = ?")
		args = append(args, *upd.TargetAmount)
	}
	if upd.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *upd.Color)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		if *upd.IsActive {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}

	if len(sets) == 0 {
		return core.SavingsAccountView{}, core.ErrNoUpdates
	}

	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id, userID)

	query := `UPDATE savings_accounts SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return core.SavingsAccountView{}, fmt.Errorf("update savings account: %w", err)
	}
	return r.GetSavingsAccount(ctx, userID, id)
}

// ArchiveSavingsAccount hides the account from listings. Its
// transactions and historical balance are untouched.
func (r *Repository) ArchiveSavingsAccount(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE savings_accounts SET is_active = 0, updated_at = datetime('now')
		WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("archive savings account: %w", err)
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

// ListSavingsTransactions returns the account and its active ledger
// entries, newest first.
func (r *Repository) ListSavingsTransactions(ctx context.Context, userID, accountID string) (core.SavingsAccountView, []core.TransactionView, error) {
	account, err := r.GetSavingsAccount(ctx, userID, accountID)
	if err != nil {
		return core.SavingsAccountView{}, nil, err
	}

	rows, err := r.db.QueryContext(ctx, viewSelect+`
		WHERE t.savings_account_id = ? AND t.user_id = ? AND t.deleted_at IS NULL
		ORDER BY t.date DESC, t.created_at DESC`,
		accountID, userID)
	if err != nil {
		return core.SavingsAccountView{}, nil, fmt.Errorf("list savings transactions: %w", err)
	}
	defer rows.Close()

	transactions := []core.TransactionView{}
	for rows.Next() {
		v, err := scanTransactionView(rows)
		if err != nil {
			return core.SavingsAccountView{}, nil, fmt.Errorf("scan savings transaction: %w", err)
		}
		transactions = append(transactions, v)
	}
	if err := rows.Err(); err != nil {
		return core.SavingsAccountView{}, nil, fmt.Errorf("iterate savings transactions: %w", err)
	}
	return account, transactions, nil
}

// CreateSavingsTransaction records a deposit or withdrawal against an
// owned account. Withdrawals are not checked against the balance, so a
// balance may go negative.
func (r *Repository) CreateSavingsTransaction(ctx context.Context, userID, accountID string, txType core.TransactionType, amount int64, date string, paymentMethodID, note *string) (core.TransactionView, error) {
	if !txType.IsSavings() {
		return core.TransactionView{}, core.ErrInvalidType
	}
	if _, err := r.GetSavingsAccount(ctx, userID, accountID); err != nil {
		return core.TransactionView{}, err
	}
	if err := core.ValidateAmount(amount); err != nil {
		return core.TransactionView{}, err
	}
	if date == "" {
		date = time.Now().UTC().Format(time.RFC3339)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, date, savings_account_id, payment_method_id, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, txType, amount, date, accountID, paymentMethodID, note)
	if err != nil {
		return core.TransactionView{}, fmt.Errorf("insert savings transaction: %w", err)
	}
	return r.GetTransaction(ctx, userID, id)
}

// SavingsTransactionUpdate is a partial update for a savings ledger
// entry.
type SavingsTransactionUpdate struct {
	Amount          *int64
	Date            *string
	PaymentMethodID *string
	Note            *string
}

// UpdateSavingsTransaction applies a partial update to a savings-typed
// row; rows of any other type are invisible here.
func (r *Repository) UpdateSavingsTransaction(ctx context.Context, userID, txID string, upd SavingsTransactionUpdate) (core.TransactionView, error) {
	if err := r.checkSavingsTransaction(ctx, userID, txID); err != nil {
		return core.TransactionView{}, err
	}

	sets := []string{}
	args := []any{}
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
	if upd.PaymentMethodID != nil {
		sets = append(sets, "payment_method_id = NULLIF(?, '')")
		args = append(args, *upd.PaymentMethodID)
	}
	if upd.Note != nil {
		sets = append(sets, "note = NULLIF(?, '')")
		args = append(args, *upd.Note)
	}

	if len(sets) == 0 {
		return core.TransactionView{}, core.ErrNoUpdates
	}

	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, txID, userID)

	query := `UPDATE transactions SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return core.TransactionView{}, fmt.Errorf("update savings transaction: %w", err)
	}
	return r.GetTransaction(ctx, userID, txID)
}

// SoftDeleteSavingsTransaction soft-deletes a savings-typed row.
func (r *Repository) SoftDeleteSavingsTransaction(ctx context.Context, userID, txID string) error {
	if err := r.checkSavingsTransaction(ctx, userID, txID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = datetime('now') WHERE id = ? AND user_id = ?`,
		txID, userID)
	if err != nil {
		return fmt.Errorf("delete savings transaction: %w", err)
	}
	return nil
}

func (r *Repository) checkSavingsTransaction(ctx context.Context, userID, txID string) error {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM transactions
		WHERE id = ? AND user_id = ?
		  AND type IN ('savings_deposit', 'savings_withdrawal')
		  AND deleted_at IS NULL`,
		txID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check savings transaction: %w", err)
	}
	return nil
}
