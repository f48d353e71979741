package errors

import "net/http"

// ErrTaskNotFound means the id is unknown. It is never used to signal that no
// operator is available.
var ErrTaskNotFound = &Exception{
	Message:    "task not found",
	StatusCode: http.StatusNotFound,
}
