package errors

import "net/http"

var ErrNotTaskOwner = &Exception{
	Message:    "task belongs to another operator",
	StatusCode: http.StatusForbidden,
}
