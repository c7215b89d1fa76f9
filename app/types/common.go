package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = int32(100)
	maxListLimit     = int32(500)
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type IDRequest struct {
	Id uint64 `json:"id"`
}

func (r *IDRequest) GetId() uint64 {
	if r == nil {
		return 0
	}
	return r.Id
}

func NewIDRequestFromContext(ctx echo.Context) (*IDRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &IDRequest{Id: id}, nil
}

func (r *IDRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid id")
	}
	return nil
}

// Page carries limit and offset query parameters.
type Page struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (p *Page) GetLimit() int32 {
	if p == nil {
		return 0
	}
	return p.Limit
}

func (p *Page) GetOffset() int32 {
	if p == nil {
		return 0
	}
	return p.Offset
}

func pageFromContext(ctx echo.Context) (Page, error) {
	page := Page{Limit: defaultListLimit}
	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return page, err
		}
		page.Limit = int32(limit)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return page, err
		}
		page.Offset = int32(offset)
	}
	return page, nil
}

func (p *Page) validate() error {
	if p.Limit == 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit < 0 || p.Limit > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if p.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

type PageRequest struct {
	Page
}

func NewPageRequestFromContext(ctx echo.Context) (*PageRequest, error) {
	page, err := pageFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return &PageRequest{Page: page}, nil
}

func (r *PageRequest) Validate() error {
	return r.Page.validate()
}
