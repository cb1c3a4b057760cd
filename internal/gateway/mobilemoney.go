package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sokomart/marketplace-api/internal/domain"
)

// MobileMoneyProvider talks to the mobile-money/wallet aggregator over its
// REST API. The exact wire format belongs to the aggregator; this adapter
// only normalizes it into charge/verify/webhook results. Webhook payloads
// are authenticated with an HMAC-SHA256 signature over the raw body.
type MobileMoneyProvider struct {
	name          string
	baseURL       string
	secretKey     string
	webhookSecret string
	client        *http.Client
}

func NewMobileMoneyProvider(name, baseURL, secretKey, webhookSecret string) *MobileMoneyProvider {
	return &MobileMoneyProvider{
		name:          name,
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (m *MobileMoneyProvider) Name() string {
	return m.name
}

type railChargeRequest struct {
	TxRef       string          `json:"tx_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PhoneNumber string          `json:"phone_number"`
	Email       string          `json:"email,omitempty"`
	FullName    string          `json:"fullname,omitempty"`
	Narration   string          `json:"narration,omitempty"`
	ChargeType  string          `json:"charge_type"`
}

type railResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID          string `json:"id"`
		TxRef       string `json:"tx_ref"`
		Status      string `json:"status"`
		RedirectURL string `json:"redirect_url"`
		Processor   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"processor_response"`
	} `json:"data"`
}

func (m *MobileMoneyProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	chargeType := "mobile_money"
	if req.Method.Category() == domain.CategoryWallet {
		chargeType = "wallet"
	}

	body, err := json.Marshal(railChargeRequest{
		TxRef:       req.Reference,
		Amount:      req.Amount,
		Currency:    req.Currency,
		PhoneNumber: req.PayerPhone,
		Email:       req.PayerEmail,
		FullName:    req.PayerName,
		Narration:   req.Description,
		ChargeType:  chargeType,
	})
	if err != nil {
		return ChargeResult{}, err
	}

	resp, err := m.do(ctx, http.MethodPost, "/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, &domain.GatewayError{Provider: m.name, Err: err}
	}

	if resp.Status != "success" {
		return ChargeResult{}, &domain.GatewayError{
			Provider: m.name,
			Err:      fmt.Errorf("charge rejected: %s", resp.Message),
		}
	}

	return ChargeResult{
		ProviderRef:     resp.Data.ID,
		RedirectURL:     resp.Data.RedirectURL,
		ResponseCode:    resp.Data.Processor.Code,
		ResponseMessage: resp.Data.Processor.Message,
	}, nil
}

func (m *MobileMoneyProvider) Verify(ctx context.Context, providerRef string) (VerifyResult, error) {
	path := "/transactions/" + url.PathEscape(providerRef) + "/verify"

	resp, err := m.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return VerifyResult{}, &domain.GatewayError{Provider: m.name, Err: err}
	}

	return VerifyResult{
		Outcome:         railOutcome(resp.Data.Status),
		ProviderRef:     resp.Data.ID,
		ResponseCode:    resp.Data.Processor.Code,
		ResponseMessage: resp.Data.Processor.Message,
	}, nil
}

type railWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        string `json:"id"`
		TxRef     string `json:"tx_ref"`
		Status    string `json:"status"`
		Processor struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"processor_response"`
	} `json:"data"`
}

func (m *MobileMoneyProvider) ParseWebhook(r *http.Request) (WebhookEvent, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxWebhookBodyBytes))
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("reading webhook body: %w", err)
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !m.validSignature(body, signature) {
		return WebhookEvent{}, fmt.Errorf("webhook signature mismatch")
	}

	var payload railWebhookPayload
	err = json.Unmarshal(body, &payload)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("decoding webhook payload: %w", err)
	}

	return WebhookEvent{
		Reference:       payload.Data.TxRef,
		Outcome:         railOutcome(payload.Data.Status),
		ProviderRef:     payload.Data.ID,
		ResponseCode:    payload.Data.Processor.Code,
		ResponseMessage: payload.Data.Processor.Message,
	}, nil
}

func (m *MobileMoneyProvider) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (m *MobileMoneyProvider) do(ctx context.Context, method, path string, body io.Reader) (*railResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+m.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("rail returned status %d", resp.StatusCode)
	}

	var railResp railResponse
	err = json.NewDecoder(resp.Body).Decode(&railResp)
	if err != nil {
		return nil, fmt.Errorf("decoding rail response: %w", err)
	}

	return &railResp, nil
}

func railOutcome(status string) Outcome {
	switch status {
	case "successful", "succeeded":
		return OutcomeSuccessful
	case "failed", "cancelled":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
