package http

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	"operator-dispatch.com/operator-dispatch/internal/http/validators"
	model "operator-dispatch.com/operator-dispatch/internal/models"
	"operator-dispatch.com/operator-dispatch/internal/services"
)

const defaultListLimit = 50

type Handler struct {
	scheduler    *services.SchedulerService
	transactions *services.TransactionService
}

func NewHandler(scheduler *services.SchedulerService, transactions *services.TransactionService) *Handler {
	return &Handler{
		scheduler:    scheduler,
		transactions: transactions,
	}
}

func (h *Handler) AssignTask(c echo.Context) error {
	var req dto.AssignRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateAssignRequest(&req); err != nil {
		return err
	}

	origin := model.Origin{ChatID: req.ChatID.String(), ThreadID: int(req.MessageThreadID)}
	result, err := h.scheduler.Assign(c.Request().Context(), origin, req.Link)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"outcome":         result.Outcome,
		"display":         result.Display(),
		"task":            result.Task,
		"operator":        result.Operator,
		"degraded":        result.Degraded,
		"degraded_reason": result.DegradedReason,
	})
}

func (h *Handler) TaskAction(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req dto.ActionRequestData
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	action, err := validators.ValidateActionRequest(&req)
	if err != nil {
		return err
	}

	result, err := h.scheduler.OnOperatorAction(c.Request().Context(), services.ActionRequest{
		TaskID:     id,
		OperatorID: req.OperatorID.String(),
		Action:     action,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) SubmitEvidence(c echo.Context) error {
	var req dto.EvidenceRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateEvidenceRequest(&req); err != nil {
		return err
	}

	result, err := h.scheduler.OnEvidenceMessage(c.Request().Context(), req.OperatorID.String(), req.Text)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) TrackedRedirect(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	result, err := h.scheduler.OnTrackedClick(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.Redirect(http.StatusFound, result.TargetURL)
}

func (h *Handler) GetTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, events, err := h.scheduler.GetTask(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"task":   task,
		"events": events,
	})
}

func (h *Handler) ListTasks(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return httpError(apperrors.ErrInvalidLimit)
		}
		limit = n
	}

	tasks, err := h.scheduler.ListTasks(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func taskID(c echo.Context) (uint, error) {
	raw := c.Param("id")
	if raw == "" {
		return 0, httpError(apperrors.ErrTaskIDRequired)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, httpError(apperrors.ErrTaskNotFound)
	}
	return uint(id), nil
}

func httpError(err error) error {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		log.Printf("http: request failed: %v", err)
	}
	return echo.NewHTTPError(status, apperrors.PublicMessage(err))
}
