package app

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sokomart/marketplace-api/api"
	"github.com/sokomart/marketplace-api/internal/domain"
)

func (app *Application) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req api.CreateOrderRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			app.failedValidationResponse(w, r, validationErrors)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductId,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := domain.NewOrder(
		req.BusinessId,
		app.contextGetBuyerId(r),
		domain.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		items,
		req.DeliveryMethod,
		req.Currency,
		req.ShippingCost,
		req.Tax,
		req.Discount,
	)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.orderRepo.Create(r.Context(), order)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	logger := app.contextGetLogger(r)
	logger.Info("order created", "order_id", order.ID, "business_id", order.BusinessID, "total", order.TotalPrice)

	app.writeJSON(w, http.StatusCreated, toOrderResponse(order), nil)
}

func (app *Application) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := app.orderRepo.GetByID(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toOrderResponse(order), nil)
}

func (app *Application) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateOrderStatusRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			app.failedValidationResponse(w, r, validationErrors)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	order, err := app.synchronizer.UpdateOrderStatus(
		r.Context(),
		chi.URLParam(r, "orderId"),
		domain.OrderStatus(req.Status),
		req.Note,
		"seller",
	)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toOrderResponse(order), nil)
}

func (app *Application) UpdateDeliveryStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateDeliveryStatusRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			app.failedValidationResponse(w, r, validationErrors)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	order, err := app.synchronizer.UpdateDeliveryStatus(
		r.Context(),
		chi.URLParam(r, "orderId"),
		domain.DeliveryStatus(req.Status),
		req.Location,
		req.Note,
	)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toOrderResponse(order), nil)
}
