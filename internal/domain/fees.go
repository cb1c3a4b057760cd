package domain

import "github.com/shopspring/decimal"

// DefaultServiceFeeRate is the platform commission applied to the subtotal.
var DefaultServiceFeeRate = decimal.NewFromFloat(0.025)

// CalculateFees derives the full amount breakdown from an order's subtotal,
// delivery fee and tax. The service fee is rounded to two decimal places on
// every computation so that totals stay reproducible across retries.
func CalculateFees(subtotal, deliveryFee, tax, serviceFeeRate decimal.Decimal) (Amount, error) {
	if subtotal.IsNegative() || deliveryFee.IsNegative() || tax.IsNegative() {
		return Amount{}, NewValidationError("amounts must not be negative")
	}

	serviceFee := subtotal.Mul(serviceFeeRate).Round(2)
	total := subtotal.Add(deliveryFee).Add(serviceFee).Add(tax)

	return Amount{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		ServiceFee:  serviceFee,
		Tax:         tax,
		Total:       total,
	}, nil
}
