package model

import "github.com/shopspring/decimal"

// Wallet is a simulated balance that only lives for one payment step.
type Wallet struct {
	balance decimal.Decimal
}

func NewWallet(seed decimal.Decimal) *Wallet {
	return &Wallet{balance: seed}
}

func (w *Wallet) Balance() decimal.Decimal {
	return w.balance
}

func (w *Wallet) TopUp(amount decimal.Decimal) decimal.Decimal {
	w.balance = w.balance.Add(amount)
	return w.balance
}

func (w *Wallet) Covers(total decimal.Decimal) bool {
	return total.LessThanOrEqual(w.balance)
}
