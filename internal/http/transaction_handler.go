package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
	apperrors "operator-dispatch.com/operator-dispatch/internal/errors"
	"operator-dispatch.com/operator-dispatch/internal/http/validators"
)

func (h *Handler) CreateTransaction(c echo.Context) error {
	var req dto.TransactionCreateRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateTransactionCreateRequest(&req); err != nil {
		return err
	}

	topic, err := h.transactions.CreateTransaction(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, topic)
}

func (h *Handler) UpdateTransactionStatus(c echo.Context) error {
	var req dto.StatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateStatusUpdateRequest(&req); err != nil {
		return err
	}

	result, err := h.transactions.UpdateStatus(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ReportCalculation(c echo.Context) error {
	var req dto.CalculationReportRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateCalculationReportRequest(&req); err != nil {
		return err
	}

	result, err := h.transactions.ReportCalculation(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) UploadDocument(c echo.Context) error {
	var req dto.DocumentUploadRequest
	if err := c.Bind(&req); err != nil {
		return httpError(apperrors.ErrInvalidJSON)
	}
	if err := validators.ValidateDocumentUploadRequest(&req); err != nil {
		return err
	}

	if err := h.transactions.ForwardDocument(c.Request().Context(), &req); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}
