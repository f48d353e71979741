package errors

import "net/http"

var ErrTaskAlreadyClaimed = &Exception{
	Message:    "task was already claimed by another operator",
	StatusCode: http.StatusConflict,
}
