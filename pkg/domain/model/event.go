package model

import "github.com/shopspring/decimal"

type ItemAddedToCart struct {
	ItemID int
	Name   string
	Price  string
}

func (e ItemAddedToCart) Type() string { return "ItemAddedToCart" }

type ItemEvicted struct {
	ItemID int
}

func (e ItemEvicted) Type() string { return "ItemEvicted" }

type CartCleared struct {
	ItemCount int
}

func (e CartCleared) Type() string { return "CartCleared" }

type CheckoutStarted struct {
	OrderNumber   string
	TransactionID string
	Total         decimal.Decimal
	WalletBalance decimal.Decimal
}

func (e CheckoutStarted) Type() string { return "CheckoutStarted" }

type WalletToppedUp struct {
	OrderNumber string
	Amount      decimal.Decimal
	NewBalance  decimal.Decimal
}

func (e WalletToppedUp) Type() string { return "WalletToppedUp" }

type PaymentRejected struct {
	OrderNumber string
	Total       decimal.Decimal
	Balance     decimal.Decimal
	Reason      string
}

func (e PaymentRejected) Type() string { return "PaymentRejected" }

type OrderCompleted struct {
	OrderNumber   string
	TransactionID string
	Total         decimal.Decimal
}

func (e OrderCompleted) Type() string { return "OrderCompleted" }

type CheckoutReset struct {
	StartScreen string
}

func (e CheckoutReset) Type() string { return "CheckoutReset" }

type OrderNumberReassigned struct {
	Previous    string
	OrderNumber string
}

func (e OrderNumberReassigned) Type() string { return "OrderNumberReassigned" }

type CheckoutCancelled struct {
	OrderNumber string
}

func (e CheckoutCancelled) Type() string { return "CheckoutCancelled" }
