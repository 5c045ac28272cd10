package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("checkout cannot move to the requested step from its current step")
	ErrReceiptNotFound     = errors.New("receipt not found")
	ErrDuplicateOrder      = errors.New("order number already used")
	ErrCartLocked          = errors.New("cart cannot change while payment is pending")
)

type CheckoutStage int

const (
	Reviewing CheckoutStage = iota
	AwaitingPayment
	Completed
)

func (s CheckoutStage) String() string {
	switch s {
	case Reviewing:
		return "reviewing"
	case AwaitingPayment:
		return "awaiting_payment"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// OrderContext is created when checkout starts and carried to payment.
// Only WalletBalance changes after creation.
type OrderContext struct {
	Total         decimal.Decimal
	WalletBalance decimal.Decimal
	OrderNumber   string
	OrderDate     time.Time
	TransactionID string
	Comment       string
}

// Receipt is what the completed step receives. The wallet balance is not part of it.
type Receipt struct {
	OrderNumber   string          `db:"order_number"`
	OrderDate     time.Time       `db:"order_date"`
	Total         decimal.Decimal `db:"total"`
	TransactionID string          `db:"transaction_id"`
	Comment       string          `db:"comment"`
}

func (o OrderContext) Receipt() Receipt {
	return Receipt{
		OrderNumber:   o.OrderNumber,
		OrderDate:     o.OrderDate,
		Total:         o.Total,
		TransactionID: o.TransactionID,
		Comment:       o.Comment,
	}
}

// ReceiptRepository.Store returns ErrDuplicateOrder when the order number is taken.
type ReceiptRepository interface {
	Store(receipt *Receipt) error
	Find(orderNumber string) (*Receipt, error)
	List() ([]Receipt, error)
}

type IDGenerator interface {
	NextOrderNumber() (string, error)
	NextTransactionID() (string, error)
}

type Clock interface {
	Now() time.Time
}
