package errors

import "net/http"

// ErrInvalidLimit rejects task listings outside 1..MaxListLimit.
var ErrInvalidLimit = &Exception{
	Message:    "limit must be between 1 and 500",
	StatusCode: http.StatusBadRequest,
}

const MaxListLimit = 500
