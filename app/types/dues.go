package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

type Dues struct {
	Id                   uint64 `json:"id"`
	MemberId             uint64 `json:"member_id"`
	Period               string `json:"period"`
	Amount               string `json:"amount"`
	DueDate              string `json:"due_date"`
	PaidDate             string `json:"paid_date,omitempty"`
	Status               string `json:"status"`
	PaymentMethod        string `json:"payment_method,omitempty"`
	ReceiptNumber        string `json:"receipt_number,omitempty"`
	ReminderSentAt       string `json:"reminder_sent_at,omitempty"`
	ReminderCount        int32  `json:"reminder_count"`
	PaymentLinkUrl       string `json:"payment_link_url,omitempty"`
	GatewayTransactionId string `json:"gateway_transaction_id,omitempty"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

type DuesEnvelopeResponse struct {
	Dues *Dues `json:"dues"`
}

type ListDuesResponse struct {
	Dues []*Dues `json:"dues"`
}

type DuesStatusResponse struct {
	Dues        *Dues  `json:"dues"`
	AsOf        string `json:"as_of"`
	Overdue     bool   `json:"overdue"`
	DaysOverdue int    `json:"days_overdue"`
}

type DuesEvent struct {
	Id        uint64 `json:"id"`
	EventType string `json:"event_type"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status"`
	Payload   string `json:"payload,omitempty"`
	CreatedAt string `json:"created_at"`
}

type ListDuesEventsResponse struct {
	Events []*DuesEvent `json:"events"`
}

type ListDuesRequest struct {
	Page
	MemberId  uint64
	Period    string
	HasStatus bool
	Status    entity.DuesStatus
}

func NewListDuesRequestFromContext(ctx echo.Context) (*ListDuesRequest, error) {
	page, err := pageFromContext(ctx)
	if err != nil {
		return nil, err
	}
	req := &ListDuesRequest{
		Page:   page,
		Period: strings.TrimSpace(ctx.QueryParam("period")),
	}

	if raw := strings.TrimSpace(ctx.QueryParam("member_id")); raw != "" {
		memberID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.MemberId = memberID
	}
	if raw := strings.TrimSpace(ctx.QueryParam("status")); raw != "" {
		status, err := entity.ParseDuesStatus(raw)
		if err != nil {
			return nil, err
		}
		req.HasStatus = true
		req.Status = status
	}

	return req, nil
}

func (r *ListDuesRequest) Validate() error {
	if r.Period != "" {
		if _, err := time.Parse("2006-01", r.Period); err != nil {
			return errors.New("period must be YYYY-MM")
		}
	}
	return r.Page.validate()
}

func (r *ListDuesRequest) GetMemberId() uint64          { return r.MemberId }
func (r *ListDuesRequest) GetPeriod() string            { return r.Period }
func (r *ListDuesRequest) GetHasStatus() bool           { return r.HasStatus }
func (r *ListDuesRequest) GetStatus() entity.DuesStatus { return r.Status }

type RecordPaymentRequest struct {
	Id            uint64 `json:"-"`
	Method        string `json:"method"`
	PaidAt        string `json:"paid_at"`
	ReceiptNumber string `json:"receipt_number"`

	method entity.PaymentMethod
	paidAt time.Time
}

func NewRecordPaymentRequestFromContext(ctx echo.Context) (*RecordPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body RecordPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Id = id
	body.ReceiptNumber = strings.TrimSpace(body.ReceiptNumber)
	body.PaidAt = strings.TrimSpace(body.PaidAt)

	return &body, nil
}

func (r *RecordPaymentRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid dues id")
	}

	method, err := entity.ParsePaymentMethod(r.Method)
	if err != nil {
		return errors.New("method must be cash, bank_transfer, gateway_payment or card")
	}
	r.method = method

	if r.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, r.PaidAt)
		if err != nil {
			return errors.New("paid_at must be RFC3339")
		}
		r.paidAt = paidAt
	}
	return nil
}

func (r *RecordPaymentRequest) GetId() uint64                   { return r.Id }
func (r *RecordPaymentRequest) GetMethod() entity.PaymentMethod { return r.method }
func (r *RecordPaymentRequest) GetPaidAt() time.Time            { return r.paidAt }
func (r *RecordPaymentRequest) GetReceiptNumber() string        { return r.ReceiptNumber }

type JobRunResponse struct {
	Job     string                 `json:"job"`
	Summary map[string]interface{} `json:"summary"`
	Error   string                 `json:"error,omitempty"`
}

type JobRequest struct {
	Name string
}

func NewJobRequestFromContext(ctx echo.Context) (*JobRequest, error) {
	return &JobRequest{Name: strings.TrimSpace(ctx.Param("name"))}, nil
}

func (r *JobRequest) Validate() error {
	if r.Name == "" {
		return errors.New("job name is required")
	}
	return nil
}

type Task struct {
	Name      string `json:"name"`
	Spec      string `json:"spec"`
	Enabled   bool   `json:"enabled"`
	Running   bool   `json:"running"`
	Next      string `json:"next,omitempty"`
	LastRun   string `json:"last_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

type ListTasksResponse struct {
	Tasks []*Task `json:"tasks"`
}
