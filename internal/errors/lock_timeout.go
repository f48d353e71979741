package errors

import "net/http"

var ErrLockTimeout = &Exception{
	Message:    "assignment lock wait timed out",
	StatusCode: http.StatusServiceUnavailable,
}
