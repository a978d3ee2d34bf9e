package core

// TransactionDetails is the expanded single-transaction payload: the
// resolved view plus, for expenses, the active repayments against it.
type TransactionDetails struct {
	TransactionView
	Repayments []Transaction `json:"repayments"`
}

// RepaymentView is a repayment row annotated with the expense it repays,
// for the lending source ledger.
type RepaymentView struct {
	Transaction
	LendingSourceName *string `json:"lending_source_name"`
	ExpenseMerchant   *string `json:"expense_merchant"`
	ExpenseNote       *string `json:"expense_note"`
}

// TransactionPage is a filtered listing with range totals and the keyset
// cursor for the next page (nil on the last page).
type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Totals       Totals            `json:"totals"`
	NextCursor   *string           `json:"next_cursor"`
}
