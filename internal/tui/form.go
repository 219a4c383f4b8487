package tui

import (
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type field struct {
	key   string // json name, matches domain.FieldErrors keys
	label string
	input textinput.Model
}

type form struct {
	fields []field
	focus  int
}

func newField(key, label, placeholder string) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 120
	in.Width = 40
	return field{key: key, label: label, input: in}
}

func newLoginForm() form {
	pw := newField("password", "Password", "")
	pw.input.EchoMode = textinput.EchoPassword
	f := form{fields: []field{newField("email", "Email", "you@example.com"), pw}}
	f.fields[0].input.Focus()
	return f
}

func newShippingForm() form {
	return form{fields: []field{
		newField("fullName", "Full name", "Ada Lovelace"),
		newField("email", "Email", "ada@example.com"),
		newField("phone", "Phone", "555-123-4567"),
		newField("address", "Address", "12 Analytical St"),
		newField("city", "City", "London"),
		newField("state", "State", "LDN"),
		newField("postalCode", "Postal code", "10001"),
		newField("country", "Country", "GB"),
	}}
}

func (f *form) last() bool { return f.focus == len(f.fields)-1 }

func (f *form) setFocus(i int) tea.Cmd {
	f.fields[f.focus].input.Blur()
	f.focus = (i + len(f.fields)) % len(f.fields)
	return f.fields[f.focus].input.Focus()
}

func (f *form) next() tea.Cmd       { return f.setFocus(f.focus + 1) }
func (f *form) focusFirst() tea.Cmd { return f.setFocus(0) }

func (f *form) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return f.next()
	case "shift+tab", "up":
		return f.setFocus(f.focus - 1)
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

func (f *form) values() []string {
	out := make([]string, len(f.fields))
	for i, fl := range f.fields {
		out[i] = strings.TrimSpace(fl.input.Value())
	}
	return out
}

func (f *form) address() domain.ShippingAddress {
	v := f.values()
	return domain.ShippingAddress{
		FullName:   v[0],
		Email:      v[1],
		Phone:      v[2],
		Address:    v[3],
		City:       v[4],
		State:      v[5],
		PostalCode: v[6],
		Country:    v[7],
	}
}
