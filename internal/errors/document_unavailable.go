package errors

import "net/http"

var ErrDocumentUnavailable = &Exception{
	Message:    "document could not be downloaded",
	StatusCode: http.StatusBadGateway,
}
