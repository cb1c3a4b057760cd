package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sokomart/marketplace-api/api"
)

var keysToIgnore = map[string]struct{}{
	"timestamp": {},
	"requestId": {},
	"createdAt": {},
}

func prepareRequest(method, path string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indeterministic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}
		if nested, ok := m[k].(map[string]any); ok {
			cleanMap(nested)
		}
	}
}

func doRequest(t testing.TB, testApp *TestApp, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := prepareRequest(method, url, reader, headers)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	testApp.App.Routes().ServeHTTP(rec, req)

	return rec
}

func decodeResponse(t testing.TB, body io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + TestAdminToken}
}

// orderPayload builds a two-line order: subtotal 5000, shipping 200, order
// total 5200. A payment against it adds the 2.5% service fee of 125 for a
// charge total of 5325.
func orderPayload() api.CreateOrderRequest {
	return api.CreateOrderRequest{
		BusinessId: TestBusinessId,
		Customer: api.CustomerInfo{
			Name:  TestCustomerName,
			Email: TestCustomerEmail,
			Phone: TestCustomerPhone,
		},
		Items: []api.OrderItemRequest{
			{
				ProductId: TestProductId,
				Name:      TestProductName,
				Quantity:  2,
				UnitPrice: decimal.NewFromInt(1500),
			},
			{
				ProductId: "c0a9d2e4-6f1b-4c3d-8e5a-1b2c3d4e5f60",
				Name:      "Sisal Basket",
				Quantity:  1,
				UnitPrice: decimal.NewFromInt(2000),
			},
		},
		DeliveryMethod: TestDeliveryMethod,
		Currency:       TestCurrency,
		ShippingCost:   decimal.NewFromInt(200),
	}
}

func createOrder(t testing.TB, testApp *TestApp) api.OrderResponse {
	t.Helper()

	rec := doRequest(t, testApp, http.MethodPost, "/orders", orderPayload(), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var order api.OrderResponse
	decodeResponse(t, rec.Body, &order)

	return order
}

func initiatePayment(t testing.TB, testApp *TestApp, orderId, method string, escrow bool, payerPhone string) (*httptest.ResponseRecorder, api.InitiatePaymentResponse) {
	t.Helper()

	rec := doRequest(t, testApp, http.MethodPost, "/payments", api.InitiatePaymentRequest{
		OrderId:    orderId,
		Method:     method,
		Escrow:     escrow,
		PayerName:  TestCustomerName,
		PayerEmail: TestCustomerEmail,
		PayerPhone: payerPhone,
	}, nil)

	var resp api.InitiatePaymentResponse
	if rec.Code == http.StatusCreated {
		decodeResponse(t, rec.Body, &resp)
	}

	return rec, resp
}
