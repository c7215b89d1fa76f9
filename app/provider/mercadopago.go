package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MercadoPagoCode           = "mercadopago"
	defaultMercadoPagoBaseURL = "https://api.mercadopago.com"
)

type MercadoPagoConfig struct {
	AccessToken               string
	WebhookSecret             string
	BaseURL                   string
	Sandbox                   bool
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type MercadoPagoProvider struct {
	cfg    MercadoPagoConfig
	client *http.Client
	now    func() time.Time
}

func NewMercadoPagoProvider(cfg MercadoPagoConfig) *MercadoPagoProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultMercadoPagoBaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &MercadoPagoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (p *MercadoPagoProvider) Code() string {
	return MercadoPagoCode
}

func (p *MercadoPagoProvider) ResolveTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if strings.TrimSpace(p.cfg.AccessToken) == "" {
		return nil, ErrNotConfigured
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrTransactionNotFound
	}

	path := "/v1/payments/" + url.PathEscape(transactionID)
	body, status, err := p.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if status >= 400 {
		return nil, fmt.Errorf("mercadopago get payment failed: status=%d body=%s", status, string(body))
	}

	var payload struct {
		ID                json.Number     `json:"id"`
		Status            string          `json:"status"`
		StatusDetail      string          `json:"status_detail"`
		ExternalReference string          `json:"external_reference"`
		TransactionAmount decimal.Decimal `json:"transaction_amount"`
		CurrencyID        string          `json:"currency_id"`
		PaymentMethodID   string          `json:"payment_method_id"`
		DateApproved      *time.Time      `json:"date_approved"`
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}

	result := &Transaction{
		ID:                payload.ID.String(),
		Status:            mapMercadoPagoStatus(payload.Status),
		RawStatus:         payload.Status,
		StatusDetail:      payload.StatusDetail,
		ExternalReference: strings.TrimSpace(payload.ExternalReference),
		Amount:            payload.TransactionAmount,
		Currency:          payload.CurrencyID,
		PaymentMethodID:   payload.PaymentMethodID,
		ApprovedAt:        payload.DateApproved,
	}
	if result.ID == "" {
		result.ID = transactionID
	}
	return result, nil
}

// CreatePaymentLink creates a checkout preference. The returned URL is the
// sandbox init point when the provider runs in sandbox mode.
func (p *MercadoPagoProvider) CreatePaymentLink(ctx context.Context, input *PaymentLinkInput) (*PaymentLink, error) {
	if strings.TrimSpace(p.cfg.AccessToken) == "" {
		return nil, ErrNotConfigured
	}
	if input == nil || strings.TrimSpace(input.ExternalReference) == "" || !input.Amount.IsPositive() {
		return nil, ErrInvalidLinkInput
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "ARS"
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Club dues"
	}

	type item struct {
		Title      string      `json:"title"`
		Quantity   int         `json:"quantity"`
		UnitPrice  json.Number `json:"unit_price"`
		CurrencyID string      `json:"currency_id"`
	}
	request := map[string]interface{}{
		"items": []item{{
			Title:      title,
			Quantity:   1,
			UnitPrice:  json.Number(input.Amount.StringFixed(2)),
			CurrencyID: currency,
		}},
		"external_reference": input.ExternalReference,
	}
	if s := strings.TrimSpace(input.NotificationURL); s != "" {
		request["notification_url"] = s
	}
	if s := strings.TrimSpace(input.PayerEmail); s != "" {
		request["payer"] = map[string]string{"email": s}
	}
	backURLs := map[string]string{}
	if s := strings.TrimSpace(input.SuccessURL); s != "" {
		backURLs["success"] = s
	}
	if s := strings.TrimSpace(input.FailureURL); s != "" {
		backURLs["failure"] = s
	}
	if len(backURLs) > 0 {
		request["back_urls"] = backURLs
		if _, ok := backURLs["success"]; ok {
			request["auto_return"] = "approved"
		}
	}
	if input.ExpiresAt != nil {
		request["expires"] = true
		request["expiration_date_to"] = input.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000-07:00")
	}

	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	body, status, err := p.do(ctx, http.MethodPost, "/checkout/preferences", encoded)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("mercadopago create preference failed: status=%d body=%s", status, string(body))
	}

	var payload struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	link := &PaymentLink{
		ID:  strings.TrimSpace(payload.ID),
		URL: strings.TrimSpace(payload.InitPoint),
	}
	if p.cfg.Sandbox && strings.TrimSpace(payload.SandboxInitPoint) != "" {
		link.URL = strings.TrimSpace(payload.SandboxInitPoint)
	}
	if link.ID == "" || link.URL == "" {
		return nil, errors.New("mercadopago preference id or url missing")
	}
	return link, nil
}

func (p *MercadoPagoProvider) VerifyNotificationSignature(notification *SignedNotification) bool {
	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		return true
	}
	if notification == nil {
		return false
	}
	return verifyMercadoPagoSignature(notification, p.cfg.WebhookSecret, p.cfg.SignatureToleranceSeconds, p.now())
}

func (p *MercadoPagoProvider) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func mapMercadoPagoStatus(status string) TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return TransactionApproved
	case "pending", "in_process", "authorized":
		return TransactionPending
	case "rejected", "cancelled", "refunded", "charged_back":
		return TransactionRejected
	default:
		return TransactionUnknown
	}
}

// verifyMercadoPagoSignature checks an x-signature header ("ts=...,v1=...")
// against the manifest "id:{data.id};request-id:{x-request-id};ts:{ts};".
// Manifest parts that are absent are left out, as the gateway does.
func verifyMercadoPagoSignature(notification *SignedNotification, secret string, toleranceSeconds int64, now time.Time) bool {
	header := strings.TrimSpace(notification.Signature)
	if header == "" || strings.TrimSpace(secret) == "" {
		return false
	}

	var ts string
	v1 := make([]string, 0, 1)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = append(v1, strings.TrimSpace(value))
		}
	}
	if ts == "" || len(v1) == 0 {
		return false
	}

	if toleranceSeconds > 0 {
		tsUnix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return false
		}
		if tsUnix > 1_000_000_000_000 {
			tsUnix /= 1000
		}
		delta := now.Unix() - tsUnix
		if delta > toleranceSeconds || -delta > toleranceSeconds {
			return false
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signatureManifest(notification.DataID, notification.RequestID, ts)))
	expected := mac.Sum(nil)

	for _, sig := range v1 {
		candidate, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(candidate, expected) {
			return true
		}
	}
	return false
}

func signatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID = strings.TrimSpace(dataID); dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}
