package errors

import "net/http"

var ErrInvalidAction = &Exception{
	Message:    "unknown operator action",
	StatusCode: http.StatusBadRequest,
}
