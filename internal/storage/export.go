package storage

import (
	"context"
	"database/sql"
	"fmt"

	"tally/internal/core"
)

// ExportData is the full per-user dump: raw rows including archived and
// soft-deleted ones, never the user record itself.
type ExportData struct {
	Transactions    []core.Transaction    `json:"transactions"`
	Categories      []core.RefEntity      `json:"categories"`
	Groups          []core.RefEntity      `json:"groups"`
	PaymentMethods  []core.RefEntity      `json:"payment_methods"`
	IncomeSources   []core.RefEntity      `json:"income_sources"`
	LendingSources  []core.RefEntity      `json:"lending_sources"`
	SavingsAccounts []core.SavingsAccount `json:"savings_accounts"`
	ExportedAt      string                `json:"exported_at"`
}

// Export collects every row the user owns.
func (r *Repository) Export(ctx context.Context, userID string) (ExportData, error) {
	data := ExportData{ExportedAt: now()}

	var err error
	if data.Transactions, err = r.exportTransactions(ctx, userID); err != nil {
		return ExportData{}, err
	}
	refs := []struct {
		table RefTable
		dst   *[]core.RefEntity
	}{
		{RefCategories, &data.Categories},
		{RefGroups, &data.Groups},
		{RefPaymentMethods, &data.PaymentMethods},
		{RefIncomeSources, &data.IncomeSources},
		{RefLendingSources, &data.LendingSources},
	}
	for _, ref := range refs {
		if *ref.dst, err = r.ListRef(ctx, ref.table, userID, nil); err != nil {
			return ExportData{}, err
		}
	}
	if data.SavingsAccounts, err = r.exportSavingsAccounts(ctx, userID); err != nil {
		return ExportData{}, err
	}
	return data, nil
}

func (r *Repository) exportTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, date,
		       category_id, group_id, payment_method_id, income_source_id,
		       lending_source_id, savings_account_id, related_transaction_id,
		       note, merchant, sort_order, created_at, updated_at, deleted_at
		FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("export transactions: %w", err)
	}
	defer rows.Close()

	transactions := []core.Transaction{}
	for rows.Next() {
		var t core.Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Date,
			&t.CategoryID, &t.GroupID, &t.PaymentMethodID, &t.IncomeSourceID,
			&t.LendingSourceID, &t.SavingsAccountID, &t.RelatedTransactionID,
			&t.Note, &t.Merchant, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exported transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exported transactions: %w", err)
	}
	return transactions, nil
}

func (r *Repository) exportSavingsAccounts(ctx context.Context, userID string) ([]core.SavingsAccount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, target_amount, color, is_active, created_at, updated_at
		FROM savings_accounts WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("export savings accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.SavingsAccount{}
	for rows.Next() {
		var a core.SavingsAccount
		var active int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.TargetAmount, &a.Color, &active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan exported savings account: %w", err)
		}
		a.IsActive = active == 1
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exported savings accounts: %w", err)
	}
	return accounts, nil
}

// Import atomically replaces every row the user owns with the payload's
// rows. user_id is forced to the caller on every inserted row so one
// user's dump can never write into another's data. Foreign key checks
// are deferred to commit so insert order does not matter.
func (r *Repository) Import(ctx context.Context, userID string, data ExportData) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `PRAGMA defer_foreign_keys = ON`); err != nil {
			return fmt.Errorf("defer foreign keys: %w", err)
		}

		for _, table := range []string{"transactions", "categories", "groups", "payment_methods", "income_sources", "lending_sources", "savings_accounts"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = ?`, userID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, e := range data.Categories {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO categories (id, user_id, name, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, userID, e.Name, boolToInt(e.IsActive), e.CreatedAt, e.UpdatedAt); err != nil {
				return fmt.Errorf("import category: %w", err)
			}
		}
		for _, e := range data.Groups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO groups (id, user_id, name, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, userID, e.Name, boolToInt(e.IsActive), e.CreatedAt, e.UpdatedAt); err != nil {
				return fmt.Errorf("import group: %w", err)
			}
		}
		for _, e := range data.PaymentMethods {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO payment_methods (id, user_id, name, type, is_active, created_at, updated_at)
				VALUES (?, ?, ?, COALESCE(?, 'other'), ?, ?, ?)`,
				e.ID, userID, e.Name, e.Type, boolToInt(e.IsActive), e.CreatedAt, e.UpdatedAt); err != nil {
				return fmt.Errorf("import payment method: %w", err)
			}
		}
		for _, e := range data.IncomeSources {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO income_sources (id, user_id, name, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, userID, e.Name, boolToInt(e.IsActive), e.CreatedAt, e.UpdatedAt); err != nil {
				return fmt.Errorf("import income source: %w", err)
			}
		}
		for _, e := range data.LendingSources {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lending_sources (id, user_id, name, color, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, userID, e.Name, e.Color, boolToInt(e.IsActive), e.CreatedAt, e.UpdatedAt); err != nil {
				return fmt.Errorf("import lending source: %w", err)
			}
		}
		for _, a := range data.SavingsAccounts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO savings_accounts (id, user_id, name, target_amount, color, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, userID, a.Name, a.TargetAmount, a.Color, boolToInt(a.IsActive), a.CreatedAt, a.UpdatedAt); err != nil {
				return fmt.Errorf("import savings account: %w", err)
			}
		}
		for _, t := range data.Transactions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (id, user_id, type, amount, date,
					category_id, group_id, payment_method_id, income_source_id,
					lending_source_id, savings_account_id, related_transaction_id,
					note, merchant, sort_order, created_at, updated_at, deleted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, userID, t.Type, t.Amount, t.Date,
				t.CategoryID, t.GroupID, t.PaymentMethodID, t.IncomeSourceID,
				t.LendingSourceID, t.SavingsAccountID, t.RelatedTransactionID,
				t.Note, t.Merchant, t.SortOrder, t.CreatedAt, t.UpdatedAt, t.DeletedAt); err != nil {
				return fmt.Errorf("import transaction: %w", err)
			}
		}

		return nil
	})
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
