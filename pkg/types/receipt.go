package types

import "math"

// Receipt is the printable summary of an order.
type Receipt struct {
	OrderID       string  `json:"order_id"`
	Customer      string  `json:"customer"`
	Date          string  `json:"date"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	Items         int     `json:"items"`
	UnitPrice     float64 `json:"unit_price"`
	Subtotal      float64 `json:"subtotal"`
	Tax           float64 `json:"tax"`
	Total         float64 `json:"total"`
}

// TaxRate is the share of an order total that is tax.
const TaxRate = 0.1

// NewReceipt derives a receipt from an order record. The order total already
// includes tax; the subtotal is the remaining 90%. Amounts are rounded to
// cents. Returns ErrInvalidID if the order has no identifier.
func NewReceipt(order Record) (Receipt, error) {
	id := order.ID(DefaultIDKey)
	if id == "" {
		return Receipt{}, ErrInvalidID
	}
	total, _ := numericValue(order["total"])
	items, _ := numericValue(order["items"])

	r := Receipt{
		OrderID:       id,
		Customer:      FormatValue(order["customer"]),
		Date:          FormatValue(order["date"]),
		PaymentMethod: FormatValue(order["paymentMethod"]),
		Status:        FormatValue(order["status"]),
		Items:         int(items),
		Total:         cents(total),
		Subtotal:      cents(total * (1 - TaxRate)),
		Tax:           cents(total * TaxRate),
	}
	if r.Items > 0 {
		r.UnitPrice = cents(total / float64(r.Items))
	}
	return r, nil
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
