// Package pricing computes order totals in integer cents.
package pricing

import (
	"github.com/vaidashi/phone-order-api/internal/models"
)

// Totals is the price breakdown of an order
type Totals struct {
	Subtotal    models.Money `json:"subtotal"`
	Tax         models.Money `json:"tax"`
	DeliveryFee models.Money `json:"delivery_fee"`
	Tip         models.Money `json:"tip"`
	Total       models.Money `json:"total"`
}

// Calculator applies the restaurant's tax rate and delivery fee
type Calculator struct {
	TaxRate     float64
	DeliveryFee models.Money
}

// NewCalculator creates a calculator from the configured tax rate and delivery fee in dollars
func NewCalculator(taxRate, deliveryFee float64) *Calculator {
	return &Calculator{
		TaxRate:     taxRate,
		DeliveryFee: models.NewMoney(deliveryFee),
	}
}

// LineTotal is quantity times unit price
func LineTotal(quantity int, unitPrice models.Money) models.Money {
	return models.Money(int64(quantity) * int64(unitPrice))
}

// Normalize fills each item's total price from quantity and unit price
func Normalize(items models.OrderItems) models.OrderItems {
	out := make(models.OrderItems, len(items))

	for i, item := range items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		item.TotalPrice = LineTotal(item.Quantity, item.UnitPrice)
		out[i] = item
	}
	return out
}

// Subtotal sums quantity times unit price over all items
func Subtotal(items models.OrderItems) models.Money {
	var sum models.Money

	for _, item := range items {
		sum += LineTotal(item.Quantity, item.UnitPrice)
	}
	return sum
}

// Calculate recomputes all totals from the items. Negative tips are treated as zero.
func (c *Calculator) Calculate(items models.OrderItems, orderType models.OrderType, tip models.Money) Totals {
	if tip < 0 {
		tip = 0
	}

	subtotal := Subtotal(items)
	tax := subtotal.MulRate(c.TaxRate)

	var fee models.Money
	if orderType == models.OrderTypeDelivery {
		fee = c.DeliveryFee
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Tip:         tip,
		Total:       subtotal + tax + fee + tip,
	}
}

// Apply writes recomputed totals onto an order
func (c *Calculator) Apply(o *models.Order) {
	o.Items = Normalize(o.Items)
	t := c.Calculate(o.Items, o.OrderType, o.Tip)

	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.DeliveryFee = t.DeliveryFee
	o.Tip = t.Tip
	o.TotalAmount = t.Total
}
