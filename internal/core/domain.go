package core

import (
	"errors"
	"regexp"
	"strings"
)

// TransactionType discriminates rows in the polymorphic transactions table.
type TransactionType string

const (
	TypeExpense           TransactionType = "expense"
	TypeIncome            TransactionType = "income"
	TypeRepayment         TransactionType = "repayment"
	TypeSavingsDeposit    TransactionType = "savings_deposit"
	TypeSavingsWithdrawal TransactionType = "savings_withdrawal"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeRepayment, TypeSavingsDeposit, TypeSavingsWithdrawal:
		return true
	}
	return false
}

// IsSavings reports whether t is a savings ledger entry.
func (t TransactionType) IsSavings() bool {
	return t == TypeSavingsDeposit || t == TypeSavingsWithdrawal
}

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrNameRequired    = errors.New("name required")
	ErrNotFound        = errors.New("not found")
	ErrNoUpdates       = errors.New("no updates")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPIN      = errors.New("invalid pin")
	ErrUsernameTaken   = errors.New("username taken")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrWrongPIN        = errors.New("wrong pin")
)

// Transaction is one row of the ledger. Amounts are integer minor units;
// dates and timestamps are RFC3339 / SQLite datetime text, compared on
// the date portion when filtering.
type Transaction struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	Type                 TransactionType `json:"type"`
	Amount               int64           `json:"amount"`
	Date                 string          `json:"date"`
	CategoryID           *string         `json:"category_id"`
	GroupID              *string         `json:"group_id"`
	PaymentMethodID      *string         `json:"payment_method_id"`
	IncomeSourceID       *string         `json:"income_source_id"`
	LendingSourceID      *string         `json:"lending_source_id"`
	SavingsAccountID     *string         `json:"savings_account_id"`
	RelatedTransactionID *string         `json:"related_transaction_id"`
	Note                 *string         `json:"note"`
	Merchant             *string         `json:"merchant"`
	SortOrder            int64           `json:"sort_order"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
	DeletedAt            *string         `json:"deleted_at,omitempty"`
}

// TransactionView is a Transaction with display names resolved via outer
// joins and, for expense rows, the derived repayment aggregates. A name is
// nil when the reference was never set or no longer resolves.
type TransactionView struct {
	Transaction
	CategoryName      *string `json:"category_name"`
	GroupName         *string `json:"group_name"`
	PaymentMethodName *string `json:"payment_method_name"`
	IncomeSourceName  *string `json:"income_source_name"`
	LendingSourceName *string `json:"lending_source_name"`
	RepaymentTotal    int64   `json:"repayment_total"`
	NetAmount         int64   `json:"net_amount"`
}

// ValidateAmount enforces the positive-amount rule shared by every
// money-bearing operation.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// User is an account holder. Users are never hard-deleted.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	UsernameNorm string `json:"-"`
	PINHash      string `json:"-"`
	IsActive     bool   `json:"-"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"-"`
}

// RefEntity is the common shape of the archivable reference tables
// (categories, groups, payment methods, income sources, lending sources).
type RefEntity struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Type      *string `json:"type,omitempty"`
	Color     *string `json:"color,omitempty"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// SavingsAccount is a named savings goal. Balance is always derived from
// the transaction log, never stored.
type SavingsAccount struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Name         string  `json:"name"`
	TargetAmount *int64  `json:"target_amount"`
	Color        *string `json:"color"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// SavingsAccountView adds the derived balance and activity count.
type SavingsAccountView struct {
	SavingsAccount
	Balance          int64 `json:"balance"`
	TransactionCount int64 `json:"transaction_count"`
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)
	pinRe      = regexp.MustCompile(`^\d{6}$`)
)

// ValidateUsername checks the registration username rule:
// 3-32 characters from [a-zA-Z0-9._-].
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePIN checks that pin is exactly six digits.
func ValidatePIN(pin string) error {
	if !pinRe.MatchString(pin) {
		return ErrInvalidPIN
	}
	return nil
}

// NormalizeUsername lowercases and trims a username for uniqueness and
// rate-limit bookkeeping. Uniqueness is case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
