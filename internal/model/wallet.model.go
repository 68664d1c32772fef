package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount must have at most 2 fractional digits")
)

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

func (t TransactionType) Valid() bool {
	return t == TransactionCredit || t == TransactionDebit
}

const OpeningBalanceNote = "Opening Balance"

type Wallet struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (w *Wallet) CanAfford(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// WalletHistory is one immutable ledger line. Amount is signed: credits are
// positive, debits negative.
type WalletHistory struct {
	ID              int64           `json:"id"`
	WalletID        int64           `json:"wallet_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	ReferenceNote   string          `json:"reference_note,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	Meta            json.RawMessage `json:"meta,omitempty"`
	CreatedAt       time.Time       `json:"create_time"`
}

// WalletMovement describes a requested credit or debit.
type WalletMovement struct {
	Amount      decimal.Decimal
	Note        string
	ReferenceID string
	Meta        map[string]any
}

func (m WalletMovement) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !m.Amount.Equal(m.Amount.Round(2)) {
		return ErrAmountPrecision
	}
	return nil
}

type WalletHistoryFilter struct {
	WalletID    int64
	Type        *TransactionType
	ReferenceID *string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
	Asc         bool
}

type Reconciliation struct {
	WalletID    int64           `json:"wallet_id"`
	Balance     decimal.Decimal `json:"balance"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
	Consistent  bool            `json:"consistent"`
}
