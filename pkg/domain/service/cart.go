package service

import (
	"github.com/shopspring/decimal"

	"canteen/pkg/domain/model"
)

type Event interface{ Type() string }
type EventDispatcher interface{ Dispatch(event Event) error }

const (
	SectionAfternoonBreak = "Afternoon Break"
	SectionCopyBreakfast  = "Copy Breakfast"
)

type CartLine struct {
	Item      model.CartItem
	Quantity  int
	LineTotal decimal.Decimal
}

type CartSection struct {
	Title string
	Lines []CartLine
}

type CartSummary struct {
	Lines      []CartLine
	Sections   []CartSection
	ItemCount  int
	TotalPrice decimal.Decimal
}

type CartService interface {
	AddItemToCart(item model.CartItem) bool
	ClearCart()
	Items() []model.CartItem
	AddedFlags() map[int]bool

	Increment(id int) error
	Decrement(id int) error
	Quantity(id int) int
	TotalItemCount() int
	TotalPrice() (decimal.Decimal, error)
	Summary() (CartSummary, error)
}

func NewCartService(cart *model.Cart, quantities *model.Quantities, dispatcher EventDispatcher) CartService {
	return &cartService{cart: cart, quantities: quantities, dispatcher: dispatcher}
}

type cartService struct {
	cart       *model.Cart
	quantities *model.Quantities
	dispatcher EventDispatcher
}

func (s *cartService) AddItemToCart(item model.CartItem) bool {
	if !s.cart.Add(item) {
		return false
	}
	s.quantities.Seed(s.cart.Items())

	_ = s.dispatcher.Dispatch(model.ItemAddedToCart{ItemID: item.ID, Name: item.Name, Price: item.Price})
	return true
}

func (s *cartService) ClearCart() {
	count := s.cart.Len()
	s.cart.Clear()
	s.quantities.Reset()

	_ = s.dispatcher.Dispatch(model.CartCleared{ItemCount: count})
}

func (s *cartService) Items() []model.CartItem {
	return s.cart.Items()
}

func (s *cartService) AddedFlags() map[int]bool {
	return s.cart.AddedFlags()
}

func (s *cartService) Increment(id int) error {
	return s.quantities.Increment(id)
}

// Decrement at quantity 1 evicts the item from the cart too, so it can be added again.
func (s *cartService) Decrement(id int) error {
	removed, err := s.quantities.Decrement(id)
	if err != nil {
		return err
	}
	if removed && s.cart.Remove(id) {
		_ = s.dispatcher.Dispatch(model.ItemEvicted{ItemID: id})
	}
	return nil
}

func (s *cartService) Quantity(id int) int {
	return s.quantities.Of(id)
}

func (s *cartService) TotalItemCount() int {
	return s.quantities.TotalCount()
}

func (s *cartService) TotalPrice() (decimal.Decimal, error) {
	return s.quantities.TotalPrice(s.cart.Items())
}

func (s *cartService) Summary() (CartSummary, error) {
	summary := CartSummary{}
	afternoon := CartSection{Title: SectionAfternoonBreak}
	breakfast := CartSection{Title: SectionCopyBreakfast}

	for _, item := range s.cart.Items() {
		qty := s.quantities.Of(item.ID)
		if qty == 0 {
			continue
		}
		price, err := model.ParsePrice(item.Price)
		if err != nil {
			return CartSummary{}, err
		}
		line := CartLine{Item: item, Quantity: qty, LineTotal: price.Mul(decimal.NewFromInt(int64(qty))).Round(2)}
		summary.Lines = append(summary.Lines, line)

		if item.ID%2 != 0 {
			afternoon.Lines = append(afternoon.Lines, line)
		} else {
			breakfast.Lines = append(breakfast.Lines, line)
		}
	}

	for _, section := range []CartSection{afternoon, breakfast} {
		if len(section.Lines) > 0 {
			summary.Sections = append(summary.Sections, section)
		}
	}

	total, err := s.TotalPrice()
	if err != nil {
		return CartSummary{}, err
	}
	summary.ItemCount = s.quantities.TotalCount()
	summary.TotalPrice = total
	return summary, nil
}
