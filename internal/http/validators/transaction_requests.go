package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
)

// ValidateTransactionCreateRequest also fills in the defaults older callers
// rely on.
func ValidateTransactionCreateRequest(r *dto.TransactionCreateRequest) error {
	if r.CityID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "city_id is required")
	}
	if r.CashAmount.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "cash_amount must not be negative")
	}
	if r.FormURL != "" && !isHTTPURL(r.FormURL) {
		return echo.NewHTTPError(http.StatusBadRequest, "form_url must be an http(s) URL")
	}

	if r.TransactionType == "" {
		r.TransactionType = "direct"
	}
	if r.ClientFullName == "" {
		r.ClientFullName = "Not specified"
	}
	return nil
}

func ValidateStatusUpdateRequest(r *dto.StatusUpdateRequest) error {
	if r.ChatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	if r.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	if r.Link != "" && !isHTTPURL(r.Link) {
		return echo.NewHTTPError(http.StatusBadRequest, "link must be an http(s) URL")
	}
	return nil
}

func ValidateCalculationReportRequest(r *dto.CalculationReportRequest) error {
	if r.ChatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	if !r.TotalToTransfer.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "total_to_transfer must be greater than 0")
	}
	return nil
}

func ValidateDocumentUploadRequest(r *dto.DocumentUploadRequest) error {
	if r.ChatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	if !isHTTPURL(r.FileURL) {
		return echo.NewHTTPError(http.StatusBadRequest, "file_url must be an http(s) URL")
	}
	return nil
}
