package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-club-dues/app/entity"
)

type Member struct {
	Id               uint64 `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	DocumentNumber   string `json:"document_number"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	Activity         string `json:"activity"`
	MembershipStatus string `json:"membership_status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type MemberEnvelopeResponse struct {
	Member *Member `json:"member"`
}

type ListMembersResponse struct {
	Members []*Member `json:"members"`
}

type CreateMemberRequest struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	DocumentNumber   string `json:"document_number"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Activity         string `json:"activity"`
	MembershipStatus string `json:"membership_status"`

	activity entity.Activity
	status   entity.MembershipStatus
}

func NewCreateMemberRequestFromContext(ctx echo.Context) (*CreateMemberRequest, error) {
	var body CreateMemberRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	body.DocumentNumber = strings.TrimSpace(body.DocumentNumber)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	body.Phone = strings.TrimSpace(body.Phone)

	return &body, nil
}

func (r *CreateMemberRequest) Validate() error {
	if r.FirstName == "" {
		return errors.New("first_name is required")
	}
	if r.DocumentNumber == "" {
		return errors.New("document_number is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}

	activity, err := entity.ParseActivity(r.Activity)
	if err != nil {
		return errors.New("activity is invalid")
	}
	r.activity = activity

	r.status = entity.MembershipStatusActive
	if strings.TrimSpace(r.MembershipStatus) != "" {
		status, err := entity.ParseMembershipStatus(r.MembershipStatus)
		if err != nil {
			return errors.New("membership_status is invalid")
		}
		r.status = status
	}
	return nil
}

func (r *CreateMemberRequest) GetFirstName() string                         { return r.FirstName }
func (r *CreateMemberRequest) GetLastName() string                          { return r.LastName }
func (r *CreateMemberRequest) GetDocumentNumber() string                    { return r.DocumentNumber }
func (r *CreateMemberRequest) GetEmail() string                             { return r.Email }
func (r *CreateMemberRequest) GetPhone() string                             { return r.Phone }
func (r *CreateMemberRequest) GetActivity() entity.Activity                 { return r.activity }
func (r *CreateMemberRequest) GetMembershipStatus() entity.MembershipStatus { return r.status }

type ListMembersRequest struct {
	Page
	HasActivity bool
	Activity    entity.Activity
	HasStatus   bool
	Status      entity.MembershipStatus
	Search      string
}

func NewListMembersRequestFromContext(ctx echo.Context) (*ListMembersRequest, error) {
	page, err := pageFromContext(ctx)
	if err != nil {
		return nil, err
	}
	req := &ListMembersRequest{
		Page:   page,
		Search: strings.TrimSpace(ctx.QueryParam("search")),
	}

	if raw := strings.TrimSpace(ctx.QueryParam("activity")); raw != "" {
		activity, err := entity.ParseActivity(raw)
		if err != nil {
			return nil, err
		}
		req.HasActivity = true
		req.Activity = activity
	}
	if raw := strings.TrimSpace(ctx.QueryParam("status")); raw != "" {
		status, err := entity.ParseMembershipStatus(raw)
		if err != nil {
			return nil, err
		}
		req.HasStatus = true
		req.Status = status
	}

	return req, nil
}

func (r *ListMembersRequest) Validate() error {
	return r.Page.validate()
}

func (r *ListMembersRequest) GetHasActivity() bool               { return r.HasActivity }
func (r *ListMembersRequest) GetActivity() entity.Activity       { return r.Activity }
func (r *ListMembersRequest) GetHasStatus() bool                 { return r.HasStatus }
func (r *ListMembersRequest) GetStatus() entity.MembershipStatus { return r.Status }
func (r *ListMembersRequest) GetSearch() string                  { return r.Search }

type UpdateMemberStatusRequest struct {
	Id     uint64 `json:"-"`
	Status string `json:"status"`

	status entity.MembershipStatus
}

func NewUpdateMemberStatusRequestFromContext(ctx echo.Context) (*UpdateMemberStatusRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body UpdateMemberStatusRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Id = id
	return &body, nil
}

func (r *UpdateMemberStatusRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid member id")
	}
	status, err := entity.ParseMembershipStatus(r.Status)
	if err != nil {
		return errors.New("status must be active, inactive or suspended")
	}
	r.status = status
	return nil
}

func (r *UpdateMemberStatusRequest) GetId() uint64                      { return r.Id }
func (r *UpdateMemberStatusRequest) GetStatus() entity.MembershipStatus { return r.status }
