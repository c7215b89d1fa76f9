package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type TwilioConfig struct {
	BaseURL     string
	AccountSID  string
	AuthToken   string
	From        string
	HTTPTimeout time.Duration
}

// TwilioSender posts to the Messages resource of a Twilio-compatible REST API.
type TwilioSender struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &TwilioSender{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	values := url.Values{}
	values.Set("To", to)
	values.Set("From", s.cfg.From)
	values.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, url.PathEscape(s.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("sms request failed: status=%d body=%s", resp.StatusCode, string(payload))
	}

	var message struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &message); err != nil {
		return "", err
	}
	return message.SID, nil
}
