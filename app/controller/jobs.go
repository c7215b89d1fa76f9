package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/factory"
	"github.com/vibast-solutions/ms-go-club-dues/app/mapper"
	"github.com/vibast-solutions/ms-go-club-dues/app/scheduler"
	"github.com/vibast-solutions/ms-go-club-dues/app/types"
)

// JobsController exposes the scheduler to operators: listing tasks, running
// one out of schedule and pausing or resuming its schedule.
type JobsController struct {
	scheduler *scheduler.Scheduler
	logger    logrus.FieldLogger
}

func NewJobsController(s *scheduler.Scheduler) *JobsController {
	return &JobsController{
		scheduler: s,
		logger:    factory.NewModuleLogger("jobs-controller"),
	}
}

func (c *JobsController) ListTasks(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.ListTasksResponse{Tasks: mapper.TasksToResponse(c.scheduler.Tasks())})
}

func (c *JobsController) RunTask(ctx echo.Context) error {
	req, err := types.NewJobRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	fields, err := c.scheduler.RunNow(ctx.Request().Context(), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownTask):
			return writeError(ctx, http.StatusNotFound, "job not found")
		case errors.Is(err, scheduler.ErrTaskRunning):
			return writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("job", req.Name).Error("Manual job run failed")
			return ctx.JSON(http.StatusInternalServerError, &types.JobRunResponse{Job: req.Name, Summary: fields, Error: err.Error()})
		}
	}

	return ctx.JSON(http.StatusOK, &types.JobRunResponse{Job: req.Name, Summary: fields})
}

func (c *JobsController) StartTask(ctx echo.Context) error {
	return c.toggle(ctx, c.scheduler.StartTask)
}

func (c *JobsController) StopTask(ctx echo.Context) error {
	return c.toggle(ctx, c.scheduler.StopTask)
}

func (c *JobsController) toggle(ctx echo.Context, fn func(name string) error) error {
	req, err := types.NewJobRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := fn(req.Name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownTask) {
			return writeError(ctx, http.StatusNotFound, "job not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("job", req.Name).Error("Toggle job failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return c.ListTasks(ctx)
}
