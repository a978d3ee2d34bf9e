package storage

import (
	"context"
	"testing"

	"tally/internal/core"
)

func TestExportIncludesDeletedAndArchived(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice")

	kept := createExpense(t, repo, user.ID, 1000, "2026-08-01")
	deleted := createExpense(t, repo, user.ID, 2000, "2026-08-02")
	if err := repo.SoftDeleteTransaction(ctx, user.ID, deleted.ID); err != nil {
		t.Fatalf("delete transaction: %v", err)
	}

	active := true
	categories, err := repo.ListRef(ctx, RefCategories, user.ID, &active)
	if err != nil || len(categories) == 0 {
		t.Fatalf("list categories: %v", err)
	}
	if err := repo.ArchiveRef(ctx, RefCategories, user.ID, categories[0].ID); err != nil {
		t.Fatalf("archive category: %v", err)
	}

	data, err := repo.Export(ctx, user.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(data.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2 (deleted rows included)", len(data.Transactions))
	}
	var foundDeleted bool
	for _, tx := range data.Transactions {
		if tx.ID == deleted.ID && tx.DeletedAt != nil {
			foundDeleted = true
		}
		if tx.ID == kept.ID && tx.DeletedAt != nil {
			t.Error("kept transaction exported with deleted_at set")
		}
	}
	if !foundDeleted {
		t.Error("deleted transaction missing or exported without deleted_at")
	}
	if len(data.Categories) != len(categories) {
		t.Errorf("got %d categories, want %d (archived rows included)", len(data.Categories), len(categories))
	}
}

func TestImportReplacesDataset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "alice")

	expense := createExpense(t, repo, user.ID, 100000, "2026-08-01")
	if _, err := repo.CreateTransaction(ctx, user.ID, NewTransaction{
		Type: core.TypeRepayment, Amount: 40000, Date: "2026-08-05",
		RelatedTransactionID: &expense.ID,
	}); err != nil {
		t.Fatalf("create repayment: %v", err)
	}
	account := createTestAccount(t, repo, user.ID, "Holiday")
	if _, err := repo.CreateSavingsTransaction(ctx, user.ID, account.ID, core.TypeSavingsDeposit, 5000, "", nil, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	snapshot, err := repo.Export(ctx, user.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	// Diverge from the snapshot, then restore it.
	createExpense(t, repo, user.ID, 999, "2026-08-20")
	if err := repo.Import(ctx, user.ID, snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}

	restored, err := repo.Export(ctx, user.ID)
	if err != nil {
		t.Fatalf("export after import: %v", err)
	}
	if len(restored.Transactions) != len(snapshot.Transactions) {
		t.Errorf("got %d transactions, want %d", len(restored.Transactions), len(snapshot.Transactions))
	}

	// Derived values still compute against the imported rows.
	view, err := repo.GetTransaction(ctx, user.ID, expense.ID)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if view.NetAmount != 60000 {
		t.Errorf("got net %d after import, want 60000", view.NetAmount)
	}
	got, err := repo.GetSavingsAccount(ctx, user.ID, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Balance != 5000 {
		t.Errorf("got balance %d after import, want 5000", got.Balance)
	}
}

func TestImportScopedToUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "alice")
	bob := createTestUser(t, repo, "bob")

	createExpense(t, repo, alice.ID, 1000, "2026-08-01")
	createExpense(t, repo, bob.ID, 2000, "2026-08-01")

	// Importing an empty snapshot wipes only the importing user.
	if err := repo.Import(ctx, alice.ID, ExportData{}); err != nil {
		t.Fatalf("import empty: %v", err)
	}
	page, err := repo.ListTransactions(ctx, alice.ID, TransactionFilter{})
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(page.Transactions) != 0 {
		t.Errorf("alice has %d transactions after empty import, want 0", len(page.Transactions))
	}

	bobPage, err := repo.ListTransactions(ctx, bob.ID, TransactionFilter{})
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if len(bobPage.Transactions) != 1 {
		t.Errorf("bob has %d transactions, want 1 untouched", len(bobPage.Transactions))
	}
}
