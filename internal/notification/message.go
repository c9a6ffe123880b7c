package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"lmp-be/internal/order"
	"lmp-be/internal/utils"

	"github.com/shopspring/decimal"
)

// Message is the payload handed to the mailer.
type Message struct {
	Kind        string `json:"kind"`
	To          string `json:"to"`
	From        string `json:"from"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

const kindOrderConfirmation = "order_confirmation"

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
}).Parse(`Hi {{.Name}},

Thank you for your order! We've received your payment and your meals are being prepared.

Order number: {{.OrderNumber}}

Items:
{{- range .Items}}
  {{.Quantity}} x {{.Name}} @ {{money .UnitPrice}} = {{money .LineTotal}}
{{- end}}

Total: {{money .Total}}

Delivering to:
  {{.Street}}
  {{.City}}, {{.Zip}}
{{- if .DeliveryDate}}

Delivery date: {{.DeliveryDate}}
{{- end}}

Questions? Just reply to this email.
`))

type confirmationLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type confirmationView struct {
	Name         string
	OrderNumber  string
	Items        []confirmationLine
	Total        decimal.Decimal
	Street       string
	City         string
	Zip          string
	DeliveryDate string
}

// RenderConfirmation builds the customer confirmation for a paid order.
func RenderConfirmation(o *order.Order, from string) (Message, error) {
	if o == nil {
		return Message{}, fmt.Errorf("render confirmation: nil order")
	}
	if strings.TrimSpace(o.CustomerEmail) == "" {
		return Message{}, fmt.Errorf("render confirmation: order %s has no email", o.OrderNumber)
	}

	view := confirmationView{
		Name:         o.CustomerName,
		OrderNumber:  o.OrderNumber,
		Total:        o.Total,
		Street:       o.ShippingStreet,
		City:         o.ShippingCity,
		Zip:          o.ShippingZip,
		DeliveryDate: utils.FormatDatePtr(o.DeliveryDate),
		Items:        make([]confirmationLine, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		name := it.MealName
		if name == "" {
			name = it.MealID
		}
		view.Items = append(view.Items, confirmationLine{
			Name:      name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.Subtotal(),
		})
	}

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render confirmation: %w", err)
	}

	return Message{
		Kind:        kindOrderConfirmation,
		To:          o.CustomerEmail,
		From:        from,
		Subject:     fmt.Sprintf("Your order %s is confirmed", o.OrderNumber),
		Body:        buf.String(),
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
	}, nil
}
