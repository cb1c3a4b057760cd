// Package api defines the request and response types of the HTTP surface.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type OrderItemRequest struct {
	ProductId string          `json:"productId" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"required"`
}

type CustomerInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

type CreateOrderRequest struct {
	BusinessId     string             `json:"businessId" validate:"required"`
	Customer       CustomerInfo       `json:"customer" validate:"required"`
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryMethod string             `json:"deliveryMethod" validate:"required"`
	Currency       string             `json:"currency" validate:"required,currency_code"`
	ShippingCost   decimal.Decimal    `json:"shippingCost"`
	Tax            decimal.Decimal    `json:"tax"`
	Discount       decimal.Decimal    `json:"discount"`
}

type AmountBreakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	ServiceFee  decimal.Decimal `json:"serviceFee"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

type InitiatePaymentRequest struct {
	OrderId    string `json:"orderId" validate:"required,uuid4"`
	Method     string `json:"method" validate:"required,payment_method"`
	Escrow     bool   `json:"escrow"`
	PayerName  string `json:"payerName"`
	PayerEmail string `json:"payerEmail" validate:"omitempty,email"`
	PayerPhone string `json:"payerPhone"`
}

type InitiatePaymentResponse struct {
	PaymentId      string          `json:"paymentId"`
	TransactionRef string          `json:"transactionRef"`
	Status         string          `json:"status"`
	RedirectUrl    string          `json:"redirectUrl,omitempty"`
	Amount         AmountBreakdown `json:"amount"`
	ReceiptNumber  string          `json:"receiptNumber"`
}

type VerifyPaymentResponse struct {
	PaymentId string `json:"paymentId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type EscrowInfo struct {
	Enabled             bool       `json:"enabled"`
	Status              string     `json:"status"`
	HeldAt              *time.Time `json:"heldAt,omitempty"`
	ReleasedAt          *time.Time `json:"releasedAt,omitempty"`
	ReleaseCondition    string     `json:"releaseCondition,omitempty"`
	AutoReleaseDeadline *time.Time `json:"autoReleaseDeadline,omitempty"`
}

type SplitInfo struct {
	Role        string          `json:"role"`
	RecipientId string          `json:"recipientId,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
}

type GatewayDetails struct {
	Provider        string `json:"provider"`
	TransactionId   string `json:"transactionId"`
	TransactionRef  string `json:"transactionRef"`
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

type RefundInfo struct {
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason,omitempty"`
	RefundedAt *time.Time      `json:"refundedAt,omitempty"`
}

type PaymentResponse struct {
	Id            string          `json:"id"`
	OrderId       string          `json:"orderId"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Amount        AmountBreakdown `json:"amount"`
	Escrow        EscrowInfo      `json:"escrow"`
	Refund        *RefundInfo     `json:"refund,omitempty"`
	ReceiptNumber string          `json:"receiptNumber"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// AdminPaymentResponse additionally exposes raw gateway codes and the split
// allocation for diagnosis. Buyer-facing endpoints never include these.
type AdminPaymentResponse struct {
	PaymentResponse
	Gateway GatewayDetails `json:"gateway"`
	Splits  []SplitInfo    `json:"splits"`
}

type ReleaseEscrowRequest struct {
	Reason string `json:"reason"`
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason" validate:"required"`
}

type DisputeEscrowRequest struct {
	Note string `json:"note" validate:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type UpdateDeliveryStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Location string `json:"location"`
	Note     string `json:"note"`
}

type TrackingEntry struct {
	Status    string    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DeliveryInfo struct {
	Method             string          `json:"method"`
	Status             string          `json:"status"`
	Fee                decimal.Decimal `json:"fee"`
	TrackingHistory    []TrackingEntry `json:"trackingHistory"`
	ActualDeliveryTime *time.Time      `json:"actualDeliveryTime,omitempty"`
}

type PaymentMirror struct {
	Status        string     `json:"status"`
	TransactionId string     `json:"transactionId,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderItem struct {
	ProductId string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type OrderResponse struct {
	Id            string               `json:"id"`
	BusinessId    string               `json:"businessId"`
	Status        string               `json:"status"`
	Currency      string               `json:"currency"`
	Items         []OrderItem          `json:"items"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	ShippingCost  decimal.Decimal      `json:"shippingCost"`
	Tax           decimal.Decimal      `json:"tax"`
	Discount      decimal.Decimal      `json:"discount"`
	TotalPrice    decimal.Decimal      `json:"totalPrice"`
	Delivery      DeliveryInfo         `json:"delivery"`
	Payment       PaymentMirror        `json:"payment"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type StalePaymentsResponse struct {
	Payments []AdminPaymentResponse `json:"payments"`
}

type EscrowSweepResponse struct {
	Released int `json:"released"`
}
