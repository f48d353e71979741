package errors

import "net/http"

var ErrInvalidTransition = &Exception{
	Message:    "action is not allowed in the current task status",
	StatusCode: http.StatusConflict,
}
