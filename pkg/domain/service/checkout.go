package service

import (
	"errors"

	"github.com/shopspring/decimal"

	"canteen/pkg/domain/model"
)

var (
	DefaultInitialBalance = decimal.NewFromInt(50)
	DefaultTopUpAmount    = decimal.NewFromInt(10)
)

const DefaultStartScreen = "Canteen"

// maxStoreAttempts bounds how many fresh order numbers Pay draws when the
// archive already holds the current one.
const maxStoreAttempts = 3

type WalletPolicy struct {
	InitialBalance decimal.Decimal
	TopUpAmount    decimal.Decimal
	StartScreen    string
}

func DefaultWalletPolicy() WalletPolicy {
	return WalletPolicy{
		InitialBalance: DefaultInitialBalance,
		TopUpAmount:    DefaultTopUpAmount,
		StartScreen:    DefaultStartScreen,
	}
}

// CheckoutService moves one order from cart review to payment to completion.
// Reviewing -> AwaitingPayment -> Completed, and Completed -> Reviewing via BackToStart.
// Cancel leaves AwaitingPayment for Reviewing without touching the cart.
type CheckoutService interface {
	Begin(comment string) (*model.OrderContext, error)
	AddMoney() (decimal.Decimal, error)
	Pay() (*model.Receipt, error)
	Cancel() error
	BackToStart() (string, error)

	Stage() model.CheckoutStage
	Current() (*model.OrderContext, error)
	LastReceipt() (*model.Receipt, error)
}

func NewCheckoutService(
	cart CartService,
	receipts model.ReceiptRepository,
	ids model.IDGenerator,
	clock model.Clock,
	dispatcher EventDispatcher,
	policy WalletPolicy,
) CheckoutService {
	return &checkoutService{
		cart:       cart,
		receipts:   receipts,
		ids:        ids,
		clock:      clock,
		dispatcher: dispatcher,
		policy:     policy,
		stage:      model.Reviewing,
	}
}

type checkoutService struct {
	cart       CartService
	receipts   model.ReceiptRepository
	ids        model.IDGenerator
	clock      model.Clock
	dispatcher EventDispatcher
	policy     WalletPolicy

	stage   model.CheckoutStage
	order   *model.OrderContext
	wallet  *model.Wallet
	receipt *model.Receipt
}

func (s *checkoutService) Begin(comment string) (*model.OrderContext, error) {
	if s.stage != model.Reviewing {
		return nil, model.ErrInvalidTransition
	}

	total, err := s.cart.TotalPrice()
	if err != nil {
		return nil, err
	}

	orderNumber, err := s.ids.NextOrderNumber()
	if err != nil {
		return nil, err
	}
	transactionID, err := s.ids.NextTransactionID()
	if err != nil {
		return nil, err
	}

	wallet := model.NewWallet(s.policy.InitialBalance)
	order := &model.OrderContext{
		Total:         total,
		WalletBalance: wallet.Balance(),
		OrderNumber:   orderNumber,
		OrderDate:     s.clock.Now().UTC(),
		TransactionID: transactionID,
		Comment:       comment,
	}

	s.order = order
	s.wallet = wallet
	s.receipt = nil
	s.stage = model.AwaitingPayment

	_ = s.dispatcher.Dispatch(model.CheckoutStarted{
		OrderNumber: orderNumber, TransactionID: transactionID, Total: total, WalletBalance: wallet.Balance(),
	})

	clone := *order
	return &clone, nil
}

func (s *checkoutService) AddMoney() (decimal.Decimal, error) {
	if s.stage != model.AwaitingPayment {
		return decimal.Zero, model.ErrInvalidTransition
	}

	balance := s.wallet.TopUp(s.policy.TopUpAmount)
	s.order.WalletBalance = balance

	_ = s.dispatcher.Dispatch(model.WalletToppedUp{
		OrderNumber: s.order.OrderNumber, Amount: s.policy.TopUpAmount, NewBalance: balance,
	})
	return balance, nil
}

func (s *checkoutService) Pay() (*model.Receipt, error) {
	if s.stage != model.AwaitingPayment {
		return nil, model.ErrInvalidTransition
	}

	if !s.wallet.Covers(s.order.Total) {
		_ = s.dispatcher.Dispatch(model.PaymentRejected{
			OrderNumber: s.order.OrderNumber,
			Total:       s.order.Total,
			Balance:     s.wallet.Balance(),
			Reason:      model.ErrInsufficientBalance.Error(),
		})
		return nil, model.ErrInsufficientBalance
	}

	receipt, err := s.storeReceipt()
	if err != nil {
		return nil, err
	}

	s.cart.ClearCart()
	s.receipt = &receipt
	s.stage = model.Completed

	_ = s.dispatcher.Dispatch(model.OrderCompleted{
		OrderNumber: receipt.OrderNumber, TransactionID: receipt.TransactionID, Total: receipt.Total,
	})

	clone := receipt
	return &clone, nil
}

// storeReceipt archives the current order, drawing a fresh order number
// whenever the archive already holds the current one.
func (s *checkoutService) storeReceipt() (model.Receipt, error) {
	for attempt := 1; ; attempt++ {
		receipt := s.order.Receipt()
		err := s.receipts.Store(&receipt)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, model.ErrDuplicateOrder) || attempt == maxStoreAttempts {
			return model.Receipt{}, err
		}

		orderNumber, idErr := s.ids.NextOrderNumber()
		if idErr != nil {
			return model.Receipt{}, idErr
		}
		_ = s.dispatcher.Dispatch(model.OrderNumberReassigned{Previous: s.order.OrderNumber, OrderNumber: orderNumber})
		s.order.OrderNumber = orderNumber
	}
}

func (s *checkoutService) Cancel() error {
	if s.stage != model.AwaitingPayment {
		return model.ErrInvalidTransition
	}

	orderNumber := s.order.OrderNumber
	s.order = nil
	s.wallet = nil
	s.stage = model.Reviewing

	_ = s.dispatcher.Dispatch(model.CheckoutCancelled{OrderNumber: orderNumber})
	return nil
}

func (s *checkoutService) BackToStart() (string, error) {
	if s.stage != model.Completed {
		return "", model.ErrInvalidTransition
	}

	s.order = nil
	s.wallet = nil
	s.receipt = nil
	s.stage = model.Reviewing

	_ = s.dispatcher.Dispatch(model.CheckoutReset{StartScreen: s.policy.StartScreen})
	return s.policy.StartScreen, nil
}

func (s *checkoutService) Stage() model.CheckoutStage {
	return s.stage
}

func (s *checkoutService) Current() (*model.OrderContext, error) {
	if s.stage != model.AwaitingPayment {
		return nil, model.ErrInvalidTransition
	}
	clone := *s.order
	return &clone, nil
}

func (s *checkoutService) LastReceipt() (*model.Receipt, error) {
	if s.stage != model.Completed {
		return nil, model.ErrInvalidTransition
	}
	clone := *s.receipt
	return &clone, nil
}
