package validators

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	dto "operator-dispatch.com/operator-dispatch/internal/data_models"
)

func ValidateAssignRequest(r *dto.AssignRequest) error {
	if r.ChatID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	if r.MessageThreadID < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "message_thread_id must not be negative")
	}
	if r.Link != "" && !isHTTPURL(r.Link) {
		return echo.NewHTTPError(http.StatusBadRequest, "link must be an http(s) URL")
	}
	return nil
}

func ValidateActionRequest(r *dto.ActionRequestData) (constants.Action, error) {
	if r.OperatorID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "operator_id is required")
	}
	action, ok := constants.ParseAction(r.Action)
	if !ok {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	return action, nil
}

func ValidateEvidenceRequest(r *dto.EvidenceRequest) error {
	if r.OperatorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "operator_id is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
