package errors

import "net/http"

// ErrOptimisticLock is returned when a task row changed between read and
// write. The scheduler retries before surfacing it.
var ErrOptimisticLock = &Exception{
	Message:    "task was modified concurrently, retry the action",
	StatusCode: http.StatusConflict,
}
