package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555")).Padding(0, 1)
)

var stepNames = []string{"Shipping", "Payment", "Done"}

func (a *App) View() string {
	var body, help string
	switch a.screen {
	case screenLogin:
		body, help = a.viewLogin(), "tab next field · enter sign in · ctrl+c quit"
	case screenCatalog:
		body, help = a.viewCatalog(), "↑/↓ move · enter add · c currency · r refresh · tab cart · q quit"
	case screenCart:
		body, help = a.viewCart(), "↑/↓ move · +/- quantity · d remove · x clear · o checkout · tab catalog"
	case screenShipping:
		body, help = a.viewShipping(), "tab next field · enter continue · esc cart"
	case screenPayment:
		body, help = a.viewPayment(), "enter pay · b back to shipping"
	case screenSuccess:
		body, help = a.viewSuccess(), "enter continue shopping · q quit"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Storefront · %s · cart %d", a.currency.Current().Code, a.cart.Count())))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(body))
	b.WriteString("\n")
	if a.busy() {
		b.WriteString(a.spinner.View() + " working...\n")
	}
	if a.err != "" {
		b.WriteString(errorStyle.Render(a.err) + "\n")
	}
	if a.status != "" {
		b.WriteString(okStyle.Render(a.status) + "\n")
	}
	b.WriteString(mutedStyle.Render(help))
	return b.String()
}

func (a *App) viewLogin() string {
	return "Sign in\n\n" + a.viewForm(&a.login)
}

func (a *App) viewCatalog() string {
	if len(a.products) == 0 {
		return mutedStyle.Render("No products.")
	}
	var lines []string
	for i, p := range a.products {
		price := "n/a"
		if c, err := p.PriceCents(); err == nil {
			price = a.currency.Format(c)
		}
		line := fmt.Sprintf("%-28s %12s  (%d in stock)", p.Name, price, p.Stock)
		lines = append(lines, pick(i == a.cursor, line))
	}
	return strings.Join(lines, "\n")
}

func (a *App) viewCart() string {
	items := a.cart.Items()
	if len(items) == 0 {
		return mutedStyle.Render("Your cart is empty.")
	}
	var lines []string
	for i, li := range items {
		line := fmt.Sprintf("%-28s x%-3d %12s", li.Product.Name, li.Quantity, a.currency.Format(li.Subtotal()))
		lines = append(lines, pick(i == a.cartCursor, line))
	}
	lines = append(lines, "", fmt.Sprintf("%-33s %12s", "Total", a.currency.Format(a.cart.Total())))
	return strings.Join(lines, "\n")
}

func (a *App) viewSteps() string {
	current := 0
	if a.seq != nil {
		current = int(a.seq.State().Step)
	}
	parts := make([]string, len(stepNames))
	for i, n := range stepNames {
		parts[i] = pick(i == current, fmt.Sprintf("%d. %s", i+1, n))
	}
	return strings.Join(parts, mutedStyle.Render("  →  "))
}

func (a *App) viewShipping() string {
	return a.viewSteps() + "\n\n" + a.viewForm(&a.shipping)
}

func (a *App) viewPayment() string {
	var b strings.Builder
	b.WriteString(a.viewSteps() + "\n\n")
	st := a.seq.State()
	if st.Shipping != nil {
		b.WriteString(fmt.Sprintf("Ship to: %s, %s, %s %s\n", st.Shipping.FullName, st.Shipping.Address, st.Shipping.City, st.Shipping.Country))
	}
	b.WriteString(fmt.Sprintf("Order:   %s\n", st.OrderID))
	b.WriteString(fmt.Sprintf("Total:   %s\n", a.currency.Format(a.cart.Total())))
	return b.String()
}

func (a *App) viewSuccess() string {
	return a.viewSteps() + "\n\n" + okStyle.Render("Payment received. Thank you!") + "\n" +
		"Order " + a.orderID
}

func (a *App) viewForm(f *form) string {
	var lines []string
	for i, fl := range f.fields {
		label := fmt.Sprintf("%-12s", fl.label)
		if i == f.focus {
			label = selectedStyle.Render(label)
		} else {
			label = normalStyle.Render(label)
		}
		line := label + " " + fl.input.View()
		if msg, ok := a.fieldErrs[fl.key]; ok && f == &a.shipping {
			line += "\n" + errorStyle.Render("  "+msg)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func pick(selected bool, s string) string {
	if selected {
		return selectedStyle.Render("› " + s)
	}
	return normalStyle.Render("  " + s)
}
