package domain

import (
	"github.com/shopspring/decimal"
)

// Payment is one payment event against an entry. Month is the human-readable
// calendar label ("January 2006") of the moment the payment was recorded.
type Payment struct {
	Month      string          `json:"month"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
}

// LoanEntry represents one borrower's gold loan record, keyed by its
// application number. The application number is caller-assigned and immutable
// once the entry exists.
//
// PendingMoney always equals BorrowedMoney minus ReceivedMoney after any
// mutation. It may go negative on overpayment; that is surfaced, not clamped.
type LoanEntry struct {
	ApplicationNumber string          `json:"applicationNumber"`
	Username          string          `json:"username"`
	Address           string          `json:"address"`
	GoldGramWeight    decimal.Decimal `json:"goldGramWeight"`
	Amount            decimal.Decimal `json:"amount"`
	StartDate         string          `json:"startDate"`
	EndDate           string          `json:"endDate"`
	PhoneNumber       string          `json:"phoneNumber"`
	Notes             string          `json:"notes,omitempty"`
	BorrowedMoney     decimal.Decimal `json:"borrowedMoney"`
	ReceivedMoney     decimal.Decimal `json:"receivedMoney"`
	PendingMoney      decimal.Decimal `json:"pendingMoney"`
	PaymentHistory    []Payment       `json:"paymentHistory"`
}

// EntryInput is the raw form input for creating or editing an entry.
// BorrowedMoney is optional: it only applies to edits, where the principal
// under repayment may be adjusted independently of the original amount.
type EntryInput struct {
	ApplicationNumber string           `json:"applicationNumber" validate:"required,alphanum"`
	Username          string           `json:"username" validate:"required,personname"`
	Address           string           `json:"address" validate:"required,min=10"`
	GoldGramWeight    decimal.Decimal  `json:"goldGramWeight" validate:"money"`
	Amount            decimal.Decimal  `json:"amount" validate:"money"`
	StartDate         string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	PhoneNumber       string           `json:"phoneNumber" validate:"required,phone"`
	Notes             string           `json:"notes"`
	BorrowedMoney     *decimal.Decimal `json:"borrowedMoney,omitempty" validate:"omitempty,money"`
}

// NewEntry builds a fresh entry from validated input. The principal under
// repayment starts equal to the requested amount, with no payments yet.
func NewEntry(in EntryInput) *LoanEntry {
	return &LoanEntry{
		ApplicationNumber: in.ApplicationNumber,
		Username:          in.Username,
		Address:           in.Address,
		GoldGramWeight:    in.GoldGramWeight,
		Amount:            in.Amount,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		PhoneNumber:       in.PhoneNumber,
		Notes:             in.Notes,
		BorrowedMoney:     in.Amount,
		ReceivedMoney:     decimal.Zero,
		PendingMoney:      in.Amount,
		PaymentHistory:    []Payment{},
	}
}

// SumPayments totals AmountPaid over a payment history.
func SumPayments(history []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range history {
		total = total.Add(p.AmountPaid)
	}
	return total
}
