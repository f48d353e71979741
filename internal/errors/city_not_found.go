package errors

import "net/http"

var ErrCityNotFound = &Exception{
	Message:    "city not found",
	StatusCode: http.StatusNotFound,
}
