package types

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	headerSignature = "X-Signature"
	maxWebhookBody  = 1 << 20
)

type WebhookAckResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type GatewayNotification struct {
	Id            uint64 `json:"id"`
	DuesId        uint64 `json:"dues_id,omitempty"`
	Provider      string `json:"provider"`
	EventType     string `json:"event_type"`
	TransactionId string `json:"transaction_id"`
	RequestId     string `json:"request_id,omitempty"`
	Outcome       string `json:"outcome"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type ListGatewayNotificationsResponse struct {
	Notifications []*GatewayNotification `json:"notifications"`
}

// GatewayNotificationRequest is a payment gateway webhook delivery. The
// event type and data id come from the JSON body and fall back to the query
// string, which is where older gateway notification formats put them.
type GatewayNotificationRequest struct {
	Provider  string
	Type      string
	DataId    string
	RequestId string
	Signature string
	Payload   string
}

func NewGatewayNotificationRequestFromContext(ctx echo.Context) (*GatewayNotificationRequest, error) {
	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}

	req := &GatewayNotificationRequest{
		Provider:  strings.ToLower(strings.TrimSpace(ctx.Param("provider"))),
		RequestId: strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID)),
		Signature: strings.TrimSpace(ctx.Request().Header.Get(headerSignature)),
		Payload:   string(rawBody),
	}

	var body struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
		Data  struct {
			ID json.RawMessage `json:"id"`
		} `json:"data"`
	}
	if len(rawBody) > 0 && json.Unmarshal(rawBody, &body) == nil {
		req.Type = firstNonEmpty(body.Type, body.Topic)
		req.DataId = rawID(body.Data.ID)
	}

	if req.Type == "" {
		req.Type = firstNonEmpty(ctx.QueryParam("type"), ctx.QueryParam("topic"))
	}
	if req.DataId == "" {
		req.DataId = firstNonEmpty(ctx.QueryParam("data.id"), ctx.QueryParam("id"))
	}

	return req, nil
}

func (r *GatewayNotificationRequest) GetProvider() string  { return r.Provider }
func (r *GatewayNotificationRequest) GetType() string      { return r.Type }
func (r *GatewayNotificationRequest) GetDataId() string    { return r.DataId }
func (r *GatewayNotificationRequest) GetRequestId() string { return r.RequestId }
func (r *GatewayNotificationRequest) GetSignature() string { return r.Signature }
func (r *GatewayNotificationRequest) GetPayload() string   { return r.Payload }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// rawID accepts an id sent either as a JSON string or as a JSON number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
