package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/remindgo/backend/api/handler"
)

type Handlers struct {
	Reminder *apiHandler.ReminderHandler
	Alert    *apiHandler.AlertHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.GET("/api/v1/reminders", handlers.Reminder.List)
	r.POST("/api/v1/reminders", handlers.Reminder.Create)
	r.PUT("/api/v1/reminders/{id}", handlers.Reminder.Update)
	r.DELETE("/api/v1/reminders/{id}", handlers.Reminder.Delete)
	r.POST("/api/v1/reminders/{id}/complete", handlers.Reminder.Complete)
	r.POST("/api/v1/reminders/{id}/postpone", handlers.Reminder.Postpone)

	r.GET("/api/v1/alerts", handlers.Alert.Recent)

	return r
}
