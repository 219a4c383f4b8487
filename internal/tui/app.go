// Package tui is the shopper terminal client: catalog, cart and the
// three-step checkout.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/aq2208/storefront-api/internal/cart"
	"github.com/aq2208/storefront-api/internal/checkout"
	"github.com/aq2208/storefront-api/internal/currency"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type screen int

const (
	screenLogin screen = iota
	screenCatalog
	screenCart
	screenShipping
	screenPayment
	screenSuccess
)

// Shop is the storefront API as the client sees it.
type Shop interface {
	Login(ctx context.Context, email, password string) error
	LoggedIn() bool
	Products(ctx context.Context, category string) ([]domain.Product, error)
}

type productsMsg struct {
	products []domain.Product
	err      error
}

type loginMsg struct{ err error }

type intentMsg struct{ err error }

type confirmMsg struct {
	res checkout.Result
	err error
}

// App is the root bubbletea model.
type App struct {
	ctx         context.Context
	shop        Shop
	cart        *cart.Store
	currency    *currency.Selector
	newCheckout func() *checkout.Sequencer

	screen     screen
	products   []domain.Product
	cursor     int
	cartCursor int

	seq       *checkout.Sequencer
	pending   bool // a submit or confirm was dispatched and has not answered
	login     form
	shipping  form
	fieldErrs domain.FieldErrors
	orderID   string

	spinner spinner.Model
	status  string
	err     string
	width   int
}

func NewApp(ctx context.Context, shop Shop, c *cart.Store, cur *currency.Selector, newCheckout func() *checkout.Sequencer) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	a := &App{
		ctx:         ctx,
		shop:        shop,
		cart:        c,
		currency:    cur,
		newCheckout: newCheckout,
		login:       newLoginForm(),
		shipping:    newShippingForm(),
		spinner:     sp,
		screen:      screenCatalog,
	}
	if !shop.LoggedIn() {
		a.screen = screenLogin
	}
	return a
}

func (a *App) Init() tea.Cmd {
	if a.screen == screenLogin {
		return tea.Batch(textinput.Blink, a.spinner.Tick)
	}
	return tea.Batch(a.fetchProducts(), a.spinner.Tick)
}

// --- commands ---

func (a *App) fetchProducts() tea.Cmd {
	return func() tea.Msg {
		ps, err := a.shop.Products(a.ctx, "")
		return productsMsg{products: ps, err: err}
	}
}

func (a *App) loginCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		return loginMsg{err: a.shop.Login(a.ctx, email, password)}
	}
}

func (a *App) submitShippingCmd(addr domain.ShippingAddress) tea.Cmd {
	seq := a.seq
	a.pending = true
	return func() tea.Msg {
		return intentMsg{err: seq.SubmitShipping(a.ctx, addr)}
	}
}

func (a *App) confirmCmd() tea.Cmd {
	seq := a.seq
	a.pending = true
	return func() tea.Msg {
		res, err := seq.Confirm(a.ctx)
		return confirmMsg{res: res, err: err}
	}
}

func (a *App) busy() bool {
	return a.pending || (a.seq != nil && a.seq.State().Busy)
}

// --- update ---

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case productsMsg:
		if msg.err != nil {
			a.err = "Could not load products: " + msg.err.Error()
			return a, nil
		}
		a.products = msg.products
		a.cursor = clamp(a.cursor, len(a.products))
		return a, nil

	case loginMsg:
		if msg.err != nil {
			a.err = "Login failed."
			return a, nil
		}
		a.err = ""
		a.screen = screenCatalog
		return a, a.fetchProducts()

	case intentMsg:
		return a.onIntent(msg)

	case confirmMsg:
		return a.onConfirm(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.screen {
		case screenLogin:
			return a.updateLogin(msg)
		case screenCatalog:
			return a.updateCatalog(msg)
		case screenCart:
			return a.updateCart(msg)
		case screenShipping:
			return a.updateShipping(msg)
		case screenPayment:
			return a.updatePayment(msg)
		case screenSuccess:
			return a.updateSuccess(msg)
		}
	}
	return a, nil
}

func (a *App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" && a.login.last() {
		v := a.login.values()
		a.err = ""
		return a, a.loginCmd(v[0], v[1])
	}
	return a, a.login.update(msg)
}

func (a *App) updateCatalog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.err, a.status = "", ""
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "up", "k":
		a.cursor = clamp(a.cursor-1, len(a.products))
	case "down", "j":
		a.cursor = clamp(a.cursor+1, len(a.products))
	case "enter", "a":
		if len(a.products) == 0 {
			return a, nil
		}
		p := a.products[a.cursor]
		if err := a.cart.AddItem(p, 1); err != nil {
			a.err = cartError(err)
			return a, nil
		}
		a.status = fmt.Sprintf("Added %s to cart.", p.Name)
	case "c":
		cur := a.currency.Next(a.ctx)
		a.status = "Currency: " + cur.Code
	case "r":
		return a, a.fetchProducts()
	case "tab":
		a.screen = screenCart
	}
	return a, nil
}

func (a *App) updateCart(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.err, a.status = "", ""
	items := a.cart.Items()
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "tab", "esc":
		a.screen = screenCatalog
	case "up", "k":
		a.cartCursor = clamp(a.cartCursor-1, len(items))
	case "down", "j":
		a.cartCursor = clamp(a.cartCursor+1, len(items))
	case "+", "-":
		if len(items) == 0 {
			return a, nil
		}
		li := items[a.cartCursor]
		q := li.Quantity + 1
		if msg.String() == "-" {
			q = li.Quantity - 1
		}
		if q == 0 {
			a.cart.RemoveItem(li.ProductID)
		} else if err := a.cart.UpdateQuantity(li.ProductID, q); err != nil {
			a.err = cartError(err)
		}
	case "d":
		if len(items) > 0 {
			a.cart.RemoveItem(items[a.cartCursor].ProductID)
		}
	case "x":
		a.cart.Clear()
	case "o":
		if len(items) == 0 {
			a.err = "Your cart is empty."
			return a, nil
		}
		if a.seq == nil {
			a.seq = a.newCheckout()
		}
		a.screen = screenShipping
		return a, a.shipping.focusFirst()
	}
	a.cartCursor = clamp(a.cartCursor, len(a.cart.Items()))
	return a, nil
}

func (a *App) updateShipping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if a.busy() {
			return a, nil
		}
		a.screen = screenCart
		return a, nil
	case "enter":
		if a.busy() {
			return a, nil
		}
		if !a.shipping.last() {
			return a, a.shipping.next()
		}
		a.err, a.fieldErrs = "", nil
		return a, a.submitShippingCmd(a.shipping.address())
	}
	return a, a.shipping.update(msg)
}

func (a *App) onIntent(msg intentMsg) (tea.Model, tea.Cmd) {
	a.pending = false
	var fe domain.FieldErrors
	switch {
	case msg.err == nil:
		a.err, a.fieldErrs = "", nil
		a.screen = screenPayment
	case errors.As(msg.err, &fe):
		a.fieldErrs = fe
		a.err = "Please fix the highlighted fields."
	case errors.Is(msg.err, checkout.ErrEmptyCart):
		a.err = "Your cart is empty."
		a.screen = screenCart
	default:
		a.err = "Checkout failed: " + msg.err.Error()
	}
	return a, nil
}

func (a *App) updatePayment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.busy() {
		return a, nil
	}
	switch msg.String() {
	case "enter":
		a.err = ""
		return a, a.confirmCmd()
	case "b", "esc":
		if err := a.seq.Back(); err != nil {
			a.err = err.Error()
			return a, nil
		}
		a.err = ""
		a.screen = screenShipping
		return a, a.shipping.focusFirst()
	}
	return a, nil
}

func (a *App) onConfirm(msg confirmMsg) (tea.Model, tea.Cmd) {
	a.pending = false
	var perr *checkout.PaymentError
	switch {
	case msg.err == nil:
		a.orderID = msg.res.OrderID
		a.screen = screenSuccess
		a.err = ""
	case errors.As(msg.err, &perr):
		a.err = perr.Reason
	default:
		a.err = msg.err.Error()
	}
	return a, nil
}

func (a *App) updateSuccess(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "enter", "esc":
		a.seq = nil
		a.orderID = ""
		a.shipping = newShippingForm()
		a.screen = screenCatalog
		return a, a.fetchProducts()
	}
	return a, nil
}

func cartError(err error) string {
	switch {
	case errors.Is(err, cart.ErrExceedsStock):
		return "Not enough stock for that quantity."
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "Quantity must be at least 1."
	default:
		return err.Error()
	}
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
