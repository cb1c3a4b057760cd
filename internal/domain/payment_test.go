package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(t *testing.T) *Order {
	t.Helper()

	order, err := NewOrder(
		"biz-1",
		"buyer-1",
		CustomerInfo{Name: "Amina Okafor", Email: "amina@example.com", Phone: "+254700111222"},
		[]OrderItem{
			{ProductID: "prod-1", Name: "Ankara fabric", Quantity: 2, UnitPrice: decimal.NewFromInt(40000)},
			{ProductID: "prod-2", Name: "Leather sandals", Quantity: 1, UnitPrice: decimal.NewFromInt(20000)},
		},
		"rider",
		"KES",
		decimal.NewFromInt(5000),
		decimal.Zero,
		decimal.Zero,
	)
	require.NoError(t, err)

	return order
}

func testPayment(t *testing.T, method PaymentMethod, escrow bool) *Payment {
	t.Helper()

	order := testOrder(t)

	fees, err := CalculateFees(order.Subtotal, order.ShippingCost, order.Tax, DefaultServiceFeeRate)
	require.NoError(t, err)

	payment, err := NewPayment(order, "seller-1", method, escrow, fees)
	require.NoError(t, err)

	return payment
}

func TestNewPayment(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	assert.Equal(t, PaymentPending, payment.Status)
	assert.Equal(t, "KES", payment.Currency)
	assert.True(t, payment.Amount.Total.Equal(decimal.NewFromInt(107500)))
	assert.NotEmpty(t, payment.ID)
	assert.Regexp(t, regexp.MustCompile(`^txn-[0-9a-f-]{36}$`), payment.Gateway.TransactionRef)
	assert.Regexp(t, regexp.MustCompile(`^RCP-[0-9A-Z]+-[0-9A-Z]{4}$`), payment.Receipt.Number)
	assert.Len(t, payment.StatusHistory, 1)
}

func TestNewPaymentSplitsSumToTotal(t *testing.T) {
	payment := testPayment(t, MethodCard, true)

	sum := decimal.Zero
	for _, split := range payment.Splits {
		sum = sum.Add(split.Amount)
		assert.Equal(t, SplitPending, split.Status)
	}

	assert.True(t, sum.Equal(payment.Amount.Total), "splits sum %s, total %s", sum, payment.Amount.Total)
}

func TestNewPaymentSplitRoles(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	roles := make(map[SplitRole]decimal.Decimal)
	for _, split := range payment.Splits {
		roles[split.Role] = split.Amount
	}

	assert.True(t, roles[SplitSeller].Equal(decimal.NewFromInt(100000)))
	assert.True(t, roles[SplitDelivery].Equal(decimal.NewFromInt(5000)))
	assert.True(t, roles[SplitPlatform].Equal(decimal.NewFromInt(2500)))
}

func TestNewPaymentEscrowDisabledForCash(t *testing.T) {
	payment := testPayment(t, MethodCashOnDelivery, true)

	assert.False(t, payment.Escrow.Enabled)
}

func TestNewPaymentRejectsUnknownMethod(t *testing.T) {
	order := testOrder(t)
	fees, err := CalculateFees(order.Subtotal, order.ShippingCost, order.Tax, DefaultServiceFeeRate)
	require.NoError(t, err)

	_, err = NewPayment(order, "seller-1", PaymentMethod("crypto"), false, fees)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestPaymentSucceedWithoutEscrowSettlesSplits(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	applied, err := payment.Succeed("gateway confirmed", time.Now().Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, PaymentSuccessful, payment.Status)
	assert.Equal(t, EscrowNone, payment.Escrow.Status)

	for _, split := range payment.Splits {
		assert.Equal(t, SplitPaid, split.Status)
		assert.NotNil(t, split.PaidAt)
	}
}

func TestPaymentSucceedWithEscrowHoldsFunds(t *testing.T) {
	payment := testPayment(t, MethodCard, true)
	deadline := time.Now().UTC().Add(7 * 24 * time.Hour)

	applied, err := payment.Succeed("gateway confirmed", deadline)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, PaymentHeldInEscrow, payment.Status)
	assert.Equal(t, EscrowHeld, payment.Escrow.Status)
	require.NotNil(t, payment.Escrow.AutoReleaseDeadline)
	assert.Equal(t, deadline, *payment.Escrow.AutoReleaseDeadline)

	// Funds are held, nothing settles yet.
	for _, split := range payment.Splits {
		assert.Equal(t, SplitPending, split.Status)
	}
}

func TestPaymentSucceedTwiceIsNoOp(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	applied, err := payment.Succeed("first delivery", time.Time{})
	require.NoError(t, err)
	assert.True(t, applied)

	historyLen := len(payment.StatusHistory)

	applied, err = payment.Succeed("duplicate delivery", time.Time{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, PaymentSuccessful, payment.Status)
	assert.Len(t, payment.StatusHistory, historyLen)
}

func TestPaymentFailAfterSuccessIsRejected(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	_, err := payment.Succeed("confirmed", time.Time{})
	require.NoError(t, err)

	_, err = payment.Fail("late failure signal")

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, PaymentSuccessful, payment.Status)
}

func TestPaymentFailTwiceIsNoOp(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	applied, err := payment.Fail("insufficient funds")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = payment.Fail("insufficient funds")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPaymentCancelOnlyBeforeTerminal(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	require.NoError(t, payment.Cancel("buyer abandoned checkout"))
	assert.Equal(t, PaymentCancelled, payment.Status)

	err := payment.Cancel("again")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestPaymentReleaseEscrow(t *testing.T) {
	payment := testPayment(t, MethodCard, true)

	_, err := payment.Succeed("confirmed", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, payment.ReleaseEscrow("delivery_confirmed"))

	assert.Equal(t, PaymentReleased, payment.Status)
	assert.Equal(t, EscrowReleased, payment.Escrow.Status)
	assert.Equal(t, "delivery_confirmed", payment.Escrow.ReleaseCondition)
	assert.NotNil(t, payment.Escrow.ReleasedAt)

	for _, split := range payment.Splits {
		assert.Equal(t, SplitPaid, split.Status)
	}
}

func TestPaymentReleaseEscrowTwiceIsRejected(t *testing.T) {
	payment := testPayment(t, MethodCard, true)

	_, err := payment.Succeed("confirmed", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, payment.ReleaseEscrow("delivery_confirmed"))

	err = payment.ReleaseEscrow("manual")

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestPaymentReleaseWithoutHeldEscrowIsRejected(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	_, err := payment.Succeed("confirmed", time.Time{})
	require.NoError(t, err)

	err = payment.ReleaseEscrow("manual")

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestPaymentDisputeKeepsStatus(t *testing.T) {
	payment := testPayment(t, MethodCard, true)

	_, err := payment.Succeed("confirmed", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, payment.MarkDisputed("buyer claims damaged goods"))

	assert.Equal(t, PaymentHeldInEscrow, payment.Status)
	assert.Equal(t, EscrowDisputed, payment.Escrow.Status)

	err = payment.ReleaseEscrow("manual")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestPaymentPartialRefundAccumulates(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	_, err := payment.Succeed("confirmed", time.Time{})
	require.NoError(t, err)

	require.NoError(t, payment.ApplyRefund(decimal.NewFromInt(50000), "one item returned", "rf-1"))
	assert.Equal(t, PaymentPartiallyRefunded, payment.Status)
	assert.True(t, payment.Refund.Amount.Equal(decimal.NewFromInt(50000)))
	assert.False(t, payment.RefundedFully())

	require.NoError(t, payment.ApplyRefund(decimal.NewFromInt(57500), "remainder returned", "rf-2"))
	assert.Equal(t, PaymentRefunded, payment.Status)
	assert.True(t, payment.RefundedFully())
}

func TestPaymentRefundCannotExceedTotal(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	_, err := payment.Succeed("confirmed", time.Time{})
	require.NoError(t, err)

	err = payment.ApplyRefund(payment.Amount.Total.Add(decimal.NewFromInt(1)), "too much", "rf-1")

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, PaymentSuccessful, payment.Status)
}

func TestPaymentRefundBeforeSuccessIsRejected(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	err := payment.ApplyRefund(decimal.NewFromInt(100), "too early", "rf-1")

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestPaymentRefundOnHeldEscrowMarksEscrowRefunded(t *testing.T) {
	payment := testPayment(t, MethodCard, true)

	_, err := payment.Succeed("confirmed", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, payment.ApplyRefund(payment.Amount.Total, "order cancelled", "rf-1"))

	assert.Equal(t, PaymentRefunded, payment.Status)
	assert.Equal(t, EscrowRefunded, payment.Escrow.Status)
}

func TestMarkProcessing(t *testing.T) {
	payment := testPayment(t, MethodMobileMoney, false)

	require.NoError(t, payment.MarkProcessing("flutterwave", "flw-123"))

	assert.Equal(t, PaymentProcessing, payment.Status)
	assert.Equal(t, "flutterwave", payment.Gateway.Provider)
	assert.Equal(t, "flw-123", payment.Gateway.TransactionID)

	err := payment.MarkProcessing("flutterwave", "flw-123")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}
