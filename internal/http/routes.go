package http

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	middleware "operator-dispatch.com/operator-dispatch/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int, gatherer prometheus.Gatherer) {
	e.Use(echomw.Recover())
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute, "/healthz", "/metrics"))

	e.POST("/tasks/assign", h.AssignTask)
	e.POST("/tasks/:id/actions", h.TaskAction)
	e.GET("/tasks/:id", h.GetTask)
	e.GET("/tasks", h.ListTasks)
	e.POST("/evidence", h.SubmitEvidence)
	e.GET("/r/:id", h.TrackedRedirect)

	e.POST("/transaction/create", h.CreateTransaction)
	e.POST("/transaction/status", h.UpdateTransactionStatus)
	e.POST("/transaction/calculation", h.ReportCalculation)
	e.POST("/transaction/document", h.UploadDocument)

	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
