package app

import (
	"github.com/sokomart/marketplace-api/api"
	"github.com/sokomart/marketplace-api/internal/domain"
)

func toAmountBreakdown(amount domain.Amount) api.AmountBreakdown {
	return api.AmountBreakdown{
		Subtotal:    amount.Subtotal,
		DeliveryFee: amount.DeliveryFee,
		ServiceFee:  amount.ServiceFee,
		Tax:         amount.Tax,
		Total:       amount.Total,
	}
}

func toPaymentResponse(payment *domain.Payment) api.PaymentResponse {
	resp := api.PaymentResponse{
		Id:       payment.ID,
		OrderId:  payment.OrderID,
		Method:   string(payment.Method),
		Status:   string(payment.Status),
		Currency: payment.Currency,
		Amount:   toAmountBreakdown(payment.Amount),
		Escrow: api.EscrowInfo{
			Enabled:             payment.Escrow.Enabled,
			Status:              string(payment.Escrow.Status),
			HeldAt:              payment.Escrow.HeldAt,
			ReleasedAt:          payment.Escrow.ReleasedAt,
			ReleaseCondition:    payment.Escrow.ReleaseCondition,
			AutoReleaseDeadline: payment.Escrow.AutoReleaseDeadline,
		},
		ReceiptNumber: payment.Receipt.Number,
		CreatedAt:     payment.CreatedAt,
	}

	if payment.Refund.RefundedAt != nil {
		resp.Refund = &api.RefundInfo{
			Amount:     payment.Refund.Amount,
			Reason:     payment.Refund.Reason,
			RefundedAt: payment.Refund.RefundedAt,
		}
	}

	return resp
}

func toAdminPaymentResponse(payment *domain.Payment) api.AdminPaymentResponse {
	splits := make([]api.SplitInfo, 0, len(payment.Splits))
	for _, split := range payment.Splits {
		splits = append(splits, api.SplitInfo{
			Role:        string(split.Role),
			RecipientId: split.RecipientID,
			Amount:      split.Amount,
			Status:      string(split.Status),
			PaidAt:      split.PaidAt,
		})
	}

	return api.AdminPaymentResponse{
		PaymentResponse: toPaymentResponse(payment),
		Gateway: api.GatewayDetails{
			Provider:        payment.Gateway.Provider,
			TransactionId:   payment.Gateway.TransactionID,
			TransactionRef:  payment.Gateway.TransactionRef,
			ResponseCode:    payment.Gateway.ResponseCode,
			ResponseMessage: payment.Gateway.ResponseMessage,
		},
		Splits: splits,
	}
}

func toOrderResponse(order *domain.Order) api.OrderResponse {
	items := make([]api.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, api.OrderItem{
			ProductId: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}

	tracking := make([]api.TrackingEntry, 0, len(order.Delivery.TrackingHistory))
	for _, entry := range order.Delivery.TrackingHistory {
		tracking = append(tracking, api.TrackingEntry{
			Status:    string(entry.Status),
			Location:  entry.Location,
			Note:      entry.Note,
			Timestamp: entry.Timestamp,
		})
	}

	history := make([]api.StatusHistoryEntry, 0, len(order.StatusHistory))
	for _, entry := range order.StatusHistory {
		history = append(history, api.StatusHistoryEntry{
			Status:    entry.Status,
			Note:      entry.Note,
			Timestamp: entry.Timestamp,
		})
	}

	return api.OrderResponse{
		Id:           order.ID,
		BusinessId:   order.BusinessID,
		Status:       string(order.Status),
		Currency:     order.Currency,
		Items:        items,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Tax:          order.Tax,
		Discount:     order.Discount,
		TotalPrice:   order.TotalPrice,
		Delivery: api.DeliveryInfo{
			Method:             order.Delivery.Method,
			Status:             string(order.Delivery.Status),
			Fee:                order.Delivery.Fee,
			TrackingHistory:    tracking,
			ActualDeliveryTime: order.Delivery.ActualDeliveryTime,
		},
		Payment: api.PaymentMirror{
			Status:        string(order.Payment.Status),
			TransactionId: order.Payment.TransactionID,
			PaidAt:        order.Payment.PaidAt,
		},
		StatusHistory: history,
		CreatedAt:     order.CreatedAt,
	}
}
