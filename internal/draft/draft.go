// Package draft parses order-creation payloads coming from the
// conversational surface and renders the confirmation text sent back to it.
package draft

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
	"github.com/ateli/materialflow/internal/engine"
)

// Draft is the payload shape produced by the text-understanding collaborator.
// Quantities and prices arrive with whatever numeric type the upstream model
// emitted, so both fields tolerate JSON numbers and numeric strings.
type Draft struct {
	Items []Item `json:"items"`
}

type Item struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unitPrice"`
}

// Parse decodes and coerces a draft payload into creation items. Zero or
// negative quantities and negative prices are rejected; everything else is
// left to the engine's own validation.
func Parse(data []byte) ([]engine.NewItem, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var d Draft
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return Items(d)
}

// Items coerces an already-decoded draft.
func Items(d Draft) ([]engine.NewItem, error) {
	if len(d.Items) == 0 {
		return nil, fmt.Errorf("%w: draft has no items", domain.ErrValidation)
	}

	items := make([]engine.NewItem, 0, len(d.Items))
	for _, it := range d.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item name is required", domain.ErrValidation)
		}

		qty, err := coerceQuantity(it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: quantity for %q: %v", domain.ErrValidation, name, err)
		}

		price, err := coercePrice(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: unit price for %q: %v", domain.ErrValidation, name, err)
		}

		items = append(items, engine.NewItem{
			Name:        name,
			Description: strings.TrimSpace(it.Description),
			Quantity:    qty,
			UnitPrice:   price,
		})
	}
	return items, nil
}

func coerceQuantity(n json.Number) (int, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, fmt.Errorf("missing")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("must be a whole number, got %s", s)
	}
	qty := int(d.IntPart())
	if qty <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", qty)
	}
	return qty, nil
}

func coercePrice(n json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative, got %s", s)
	}
	return d, nil
}

// Confirmation renders the human-readable creation summary displayed in the
// conversational surface.
func Confirmation(o domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s created with %d item", o.OrderNumber, len(o.Items))
	if len(o.Items) != 1 {
		b.WriteString("s")
	}
	b.WriteString(":\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "  - %s x%d @ %s = %s\n", it.Name, it.Quantity, it.UnitPrice.String(), it.TotalPrice.String())
	}
	fmt.Fprintf(&b, "Total: %s", o.TotalAmount.String())
	if len(o.Approvals) > 0 {
		fmt.Fprintf(&b, "\nAwaiting approval from %d team member", len(o.Approvals))
		if len(o.Approvals) != 1 {
			b.WriteString("s")
		}
		b.WriteString(".")
	}
	return b.String()
}
