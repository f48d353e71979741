package errors

import "net/http"

var ErrTargetMissing = &Exception{
	Message:    "task has no target link",
	StatusCode: http.StatusNotFound,
}
