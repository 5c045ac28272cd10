package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"canteen/pkg/domain/model"
	"canteen/pkg/domain/service"
	"canteen/pkg/menu"
	"canteen/pkg/session"
)

const SessionHeader = "X-Session-ID"

type Handler struct {
	menu     *menu.Menu
	sessions *session.Registry
	receipts model.ReceiptRepository
}

type Options struct {
	Metrics http.Handler
	Limiter *RateLimiter
}

func Router(m *menu.Menu, sessions *session.Registry, receipts model.ReceiptRepository, opts Options) http.Handler {
	h := &Handler{menu: m, sessions: sessions, receipts: receipts}

	r := mux.NewRouter()
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	s := r.PathPrefix("/api/v1").Subrouter()
	s.HandleFunc("/menu", h.listMenu).Methods(http.MethodGet)
	s.HandleFunc("/menu/{day}", h.menuForDay).Methods(http.MethodGet)
	s.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	s.HandleFunc("/orders/{orderNumber}", h.getOrder).Methods(http.MethodGet)

	c := s.NewRoute().Subrouter()
	if opts.Limiter != nil {
		c.Use(opts.Limiter.Middleware)
	}
	c.Use(h.sessionMiddleware)
	c.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	c.HandleFunc("/cart", h.clearCart).Methods(http.MethodDelete)
	c.HandleFunc("/cart/items", h.addItem).Methods(http.MethodPost)
	c.HandleFunc("/cart/items/{id:[0-9]+}/increment", h.increment).Methods(http.MethodPost)
	c.HandleFunc("/cart/items/{id:[0-9]+}/decrement", h.decrement).Methods(http.MethodPost)
	c.HandleFunc("/checkout", h.beginCheckout).Methods(http.MethodPost)
	c.HandleFunc("/checkout", h.cancelCheckout).Methods(http.MethodDelete)
	c.HandleFunc("/checkout/payment", h.getPayment).Methods(http.MethodGet)
	c.HandleFunc("/checkout/payment/topup", h.addMoney).Methods(http.MethodPost)
	c.HandleFunc("/checkout/payment/pay", h.pay).Methods(http.MethodPost)
	c.HandleFunc("/checkout/completed", h.getCompleted).Methods(http.MethodGet)
	c.HandleFunc("/checkout/back", h.backToStart).Methods(http.MethodPost)

	return logMiddleware(r)
}

type cartItemJSON struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type cartLineJSON struct {
	cartItemJSON
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

type cartSectionJSON struct {
	Title string         `json:"title"`
	Items []cartLineJSON `json:"items"`
}

type cartJSON struct {
	Items      []cartLineJSON    `json:"items"`
	Sections   []cartSectionJSON `json:"sections"`
	AddedItems map[int]bool      `json:"addedItems"`
	ItemCount  int               `json:"itemCount"`
	Total      string            `json:"total"`
	Stage      string            `json:"stage"`
}

type orderContextJSON struct {
	Total         string `json:"total"`
	WalletBalance string `json:"walletBalance"`
	OrderNumber   string `json:"orderNumber"`
	OrderDate     string `json:"orderDate"`
	TransactionID string `json:"transactionId"`
	Comment       string `json:"comment,omitempty"`
}

type receiptJSON struct {
	OrderNumber   string `json:"orderNumber"`
	OrderDate     string `json:"orderDate"`
	Total         string `json:"total"`
	TransactionID string `json:"transactionId"`
	Comment       string `json:"comment,omitempty"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (h *Handler) listMenu(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.menu.Days())
}

func (h *Handler) menuForDay(w http.ResponseWriter, r *http.Request) {
	day, err := h.menu.Day(mux.Vars(r)["day"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *Handler) listOrders(w http.ResponseWriter, _ *http.Request) {
	receipts, err := h.receipts.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]receiptJSON, 0, len(receipts))
	for _, receipt := range receipts {
		out = append(out, toReceiptJSON(receipt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.receipts.Find(mux.Vars(r)["orderNumber"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptJSON(*receipt))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		out, err := cartView(s)
		return http.StatusOK, out, err
	})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		if err := cartEditable(s); err != nil {
			return 0, nil, err
		}
		s.Cart.ClearCart()
		out, err := cartView(s)
		return http.StatusOK, out, err
	})
}

// addItem accepts either a full catalog entry or just an id that is looked up in the menu.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemJSON
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}

	item := model.CartItem{ID: req.ID, Name: req.Name, Price: req.Price}
	if item.Price == "" {
		found, err := h.menu.Find(req.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		item = found
	} else if price, err := model.ParsePrice(item.Price); err != nil {
		writeError(w, err)
		return
	} else if price.IsNegative() {
		writeError(w, fmt.Errorf("%w: negative price %q", model.ErrMalformedPrice, item.Price))
		return
	}

	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		if err := cartEditable(s); err != nil {
			return 0, nil, err
		}
		status := http.StatusOK
		if s.Cart.AddItemToCart(item) {
			status = http.StatusCreated
		}
		out, err := cartView(s)
		return status, out, err
	})
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		if err := cartEditable(s); err != nil {
			return 0, nil, err
		}
		if err := s.Cart.Increment(id); err != nil {
			return 0, nil, err
		}
		out, err := cartView(s)
		return http.StatusOK, out, err
	})
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		if err := cartEditable(s); err != nil {
			return 0, nil, err
		}
		if err := s.Cart.Decrement(id); err != nil {
			return 0, nil, err
		}
		out, err := cartView(s)
		return http.StatusOK, out, err
	})
}

func (h *Handler) beginCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}

	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		order, err := s.Checkout.Begin(req.Comment)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toOrderContextJSON(*order), nil
	})
}

func (h *Handler) cancelCheckout(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		if err := s.Checkout.Cancel(); err != nil {
			return 0, nil, err
		}
		out, err := cartView(s)
		return http.StatusOK, out, err
	})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		order, err := s.Checkout.Current()
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toOrderContextJSON(*order), nil
	})
}

func (h *Handler) addMoney(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		if _, err := s.Checkout.AddMoney(); err != nil {
			return 0, nil, err
		}
		order, err := s.Checkout.Current()
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toOrderContextJSON(*order), nil
	})
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		receipt, err := s.Checkout.Pay()
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toReceiptJSON(*receipt), nil
	})
}

func (h *Handler) getCompleted(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		receipt, err := s.Checkout.LastReceipt()
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, toReceiptJSON(*receipt), nil
	})
}

func (h *Handler) backToStart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *session.Session) (int, any, error) {
		screen, err := s.Checkout.BackToStart()
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, map[string]string{"next": screen}, nil
	})
}

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(s *session.Session) (int, any, error)) {
	var (
		status int
		body   any
	)
	err := session.FromContext(r.Context()).Do(func(s *session.Session) error {
		var err error
		status, body, err = fn(s)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, body)
}

// cartEditable refuses cart changes once the order total has been fixed for payment.
func cartEditable(s *session.Session) error {
	if s.Checkout.Stage() == model.AwaitingPayment {
		return model.ErrCartLocked
	}
	return nil
}

func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = "default"
		}
		ctx := session.WithSession(r.Context(), h.sessions.Get(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func cartView(s *session.Session) (cartJSON, error) {
	summary, err := s.Cart.Summary()
	if err != nil {
		return cartJSON{}, err
	}

	out := cartJSON{
		Items:      make([]cartLineJSON, 0, len(summary.Lines)),
		Sections:   make([]cartSectionJSON, 0, len(summary.Sections)),
		AddedItems: s.Cart.AddedFlags(),
		ItemCount:  summary.ItemCount,
		Total:      summary.TotalPrice.StringFixed(2),
		Stage:      s.Checkout.Stage().String(),
	}
	for _, line := range summary.Lines {
		out.Items = append(out.Items, toLineJSON(line))
	}
	for _, section := range summary.Sections {
		sj := cartSectionJSON{Title: section.Title}
		for _, line := range section.Lines {
			sj.Items = append(sj.Items, toLineJSON(line))
		}
		out.Sections = append(out.Sections, sj)
	}
	return out, nil
}

func toLineJSON(line service.CartLine) cartLineJSON {
	return cartLineJSON{
		cartItemJSON: cartItemJSON{ID: line.Item.ID, Name: line.Item.Name, Price: line.Item.Price},
		Quantity:     line.Quantity,
		LineTotal:    line.LineTotal.StringFixed(2),
	}
}

func toOrderContextJSON(o model.OrderContext) orderContextJSON {
	return orderContextJSON{
		Total:         money(o.Total),
		WalletBalance: money(o.WalletBalance),
		OrderNumber:   o.OrderNumber,
		OrderDate:     o.OrderDate.Format(time.RFC3339),
		TransactionID: o.TransactionID,
		Comment:       o.Comment,
	}
}

func toReceiptJSON(r model.Receipt) receiptJSON {
	return receiptJSON{
		OrderNumber:   r.OrderNumber,
		OrderDate:     r.OrderDate.Format(time.RFC3339),
		Total:         money(r.Total),
		TransactionID: r.TransactionID,
		Comment:       r.Comment,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrCartLocked):
		return http.StatusConflict
	case errors.Is(err, model.ErrItemNotInCart),
		errors.Is(err, model.ErrReceiptNotFound),
		errors.Is(err, menu.ErrEntryNotFound),
		errors.Is(err, menu.ErrDayNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrMalformedPrice):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(b); err != nil {
		log.WithField("err", err).Error("write response status")
	}
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
			"session":    r.Header.Get(SessionHeader),
		}).Info("got a new request")
		h.ServeHTTP(w, r)
	})
}
