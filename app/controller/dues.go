package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/dues"
	"github.com/vibast-solutions/ms-go-club-dues/app/factory"
	"github.com/vibast-solutions/ms-go-club-dues/app/mapper"
	"github.com/vibast-solutions/ms-go-club-dues/app/service"
	"github.com/vibast-solutions/ms-go-club-dues/app/types"
)

const internalErrorMessage = "internal server error"

type DuesController struct {
	duesService *service.DuesService
	logger      logrus.FieldLogger
}

func NewDuesController(duesService *service.DuesService) *DuesController {
	return &DuesController{
		duesService: duesService,
		logger:      factory.NewModuleLogger("dues-controller"),
	}
}

func (c *DuesController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *DuesController) CreateMember(ctx echo.Context) error {
	req, err := types.NewCreateMemberRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	member, err := c.duesService.CreateMember(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMemberAlreadyExists):
			return writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create member failed")
			return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
		}
	}

	return ctx.JSON(http.StatusCreated, &types.MemberEnvelopeResponse{Member: mapper.MemberToResponse(member)})
}

func (c *DuesController) GetMember(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	member, err := c.duesService.GetMember(ctx.Request().Context(), req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrMemberNotFound) {
			return writeError(ctx, http.StatusNotFound, "member not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get member failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return ctx.JSON(http.StatusOK, &types.MemberEnvelopeResponse{Member: mapper.MemberToResponse(member)})
}

func (c *DuesController) ListMembers(ctx echo.Context) error {
	req, err := types.NewListMembersRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	members, err := c.duesService.ListMembers(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List members failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return ctx.JSON(http.StatusOK, &types.ListMembersResponse{Members: mapper.MembersToResponse(members)})
}

func (c *DuesController) UpdateMemberStatus(ctx echo.Context) error {
	req, err := types.NewUpdateMemberStatusRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	member, err := c.duesService.UpdateMemberStatus(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMemberNotFound):
			return writeError(ctx, http.StatusNotFound, "member not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Update member status failed")
			return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
		}
	}

	return ctx.JSON(http.StatusOK, &types.MemberEnvelopeResponse{Member: mapper.MemberToResponse(member)})
}

func (c *DuesController) DeleteMember(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.duesService.DeleteMember(ctx.Request().Context(), req.GetId()); err != nil {
		switch {
		case errors.Is(err, service.ErrMemberNotFound):
			return writeError(ctx, http.StatusNotFound, "member not found")
		case errors.Is(err, service.ErrMemberHasOutstandingDues):
			return writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Delete member failed")
			return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Member deleted"})
}

func (c *DuesController) GetDues(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	record, err := c.duesService.GetDues(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeDuesError(ctx, err, "Get dues failed")
	}

	return ctx.JSON(http.StatusOK, &types.DuesEnvelopeResponse{Dues: mapper.DuesToResponse(record)})
}

func (c *DuesController) ListDues(ctx echo.Context) error {
	req, err := types.NewListDuesRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.duesService.ListDues(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List dues failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return ctx.JSON(http.StatusOK, &types.ListDuesResponse{Dues: mapper.DuesListToResponse(items)})
}

func (c *DuesController) GetDuesStatus(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	view, err := c.duesService.GetDuesStatus(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeDuesError(ctx, err, "Get dues status failed")
	}

	return ctx.JSON(http.StatusOK, mapper.DuesStatusToResponse(view))
}

func (c *DuesController) GetDuesEvents(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	events, err := c.duesService.GetDuesEvents(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeDuesError(ctx, err, "Get dues events failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListDuesEventsResponse{Events: mapper.DuesEventsToResponse(events)})
}

func (c *DuesController) RecordPayment(ctx echo.Context) error {
	req, err := types.NewRecordPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	record, err := c.duesService.RecordPayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeDuesError(ctx, err, "Record payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.DuesEnvelopeResponse{Dues: mapper.DuesToResponse(record)})
}

func (c *DuesController) CancelDues(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	record, err := c.duesService.CancelDues(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeDuesError(ctx, err, "Cancel dues failed")
	}

	return ctx.JSON(http.StatusOK, &types.DuesEnvelopeResponse{Dues: mapper.DuesToResponse(record)})
}

func (c *DuesController) CreatePaymentLink(ctx echo.Context) error {
	req, err := types.NewIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	record, err := c.duesService.CreatePaymentLink(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeDuesError(ctx, err, "Create payment link failed")
	}

	return ctx.JSON(http.StatusOK, &types.DuesEnvelopeResponse{Dues: mapper.DuesToResponse(record)})
}

func (c *DuesController) ListGatewayNotifications(ctx echo.Context) error {
	req, err := types.NewPageRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.duesService.ListGatewayNotifications(ctx.Request().Context(), req.GetLimit())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List gateway notifications failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return ctx.JSON(http.StatusOK, &types.ListGatewayNotificationsResponse{Notifications: mapper.GatewayNotificationsToResponse(items)})
}

func (c *DuesController) writeDuesError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, dues.ErrPaymentMethodRequired):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuesNotFound):
		return writeError(ctx, http.StatusNotFound, "dues not found")
	case errors.Is(err, dues.ErrInvalidTransition), errors.Is(err, service.ErrDuesNotPayable):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrConcurrentUpdate), errors.Is(err, service.ErrReceiptNumberTaken):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrProviderUnsupported):
		return writeError(ctx, http.StatusServiceUnavailable, "payment gateway is not configured")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}
}

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
