package errors

import "net/http"

var ErrActiveTaskConflict = &Exception{
	Message:    "operator already has an active task",
	StatusCode: http.StatusConflict,
}
