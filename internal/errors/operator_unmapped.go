package errors

import "net/http"

var ErrOperatorUnmapped = &Exception{
	Message:    "operator has no notification channel configured",
	StatusCode: http.StatusUnprocessableEntity,
}
