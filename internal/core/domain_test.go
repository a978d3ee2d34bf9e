package core

import (
	"errors"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "alice", false},
		{"with allowed punctuation", "a.l_i-ce9", false},
		{"min length", "abc", false},
		{"max length", "abcdefghijklmnopqrstuvwxyz012345", false},
		{"too short", "ab", true},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456", true},
		{"empty", "", true},
		{"space", "al ice", true},
		{"unicode", "алиса", true},
		{"at sign", "alice@home", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidUsername) {
				t.Errorf("expected ErrInvalidUsername, got %v", err)
			}
		})
	}
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		name    string
		pin     string
		wantErr bool
	}{
		{"six digits", "123456", false},
		{"leading zeros", "000000", false},
		{"too short", "12345", true},
		{"too long", "1234567", true},
		{"letters", "12a456", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePIN(%q) = %v, wantErr %v", tt.pin, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  Alice_99 "); got != "alice_99" {
		t.Errorf("NormalizeUsername = %q, want %q", got, "alice_99")
	}
}

func TestTransactionTypeValid(t *testing.T) {
	for _, typ := range []TransactionType{TypeExpense, TypeIncome, TypeRepayment, TypeSavingsDeposit, TypeSavingsWithdrawal} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if TransactionType("transfer").Valid() {
		t.Error("unknown type should not be valid")
	}
	if !TypeSavingsDeposit.IsSavings() || !TypeSavingsWithdrawal.IsSavings() {
		t.Error("savings types should report IsSavings")
	}
	if TypeExpense.IsSavings() {
		t.Error("expense is not a savings type")
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount(1); err != nil {
		t.Errorf("amount 1 should be valid: %v", err)
	}
	for _, bad := range []int64{0, -1, -100000} {
		if err := ValidateAmount(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d should be invalid, got %v", bad, err)
		}
	}
}

func TestNetAmount(t *testing.T) {
	if got := NetAmount(100000, 40000); got != 60000 {
		t.Errorf("NetAmount = %d, want 60000", got)
	}
	// Overpayment is not clamped.
	if got := NetAmount(100, 150); got != -50 {
		t.Errorf("NetAmount = %d, want -50", got)
	}
}
