package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
)

// AppointmentService is the part of appointment.Service the handlers use.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, req appointment.CreateRequest) (*appointment.AppointmentDetail, error)
	GetAppointment(ctx context.Context, id int64) (*appointment.AppointmentDetail, error)
	ListAppointments(ctx context.Context) ([]appointment.AppointmentDetail, error)
	ListAppointmentsFor(ctx context.Context, caller appointment.Caller) ([]appointment.AppointmentDetail, error)
	ListAppointmentsByRole(ctx context.Context, subjectID int64, role appointment.Role) ([]appointment.AppointmentDetail, error)
	ListAppointmentsByStatus(ctx context.Context, status appointment.AppointmentStatus) ([]appointment.AppointmentDetail, error)
	ListAppointmentsBetween(ctx context.Context, from, to appointment.Date) ([]appointment.AppointmentDetail, error)
	IsSlotAvailable(ctx context.Context, slot appointment.Slot) (bool, error)
	UpdateAppointment(ctx context.Context, id int64, req appointment.UpdateRequest) (*appointment.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, id int64) (*appointment.AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, id int64) error
}

type RouterConfig struct {
	Service      AppointmentService
	Tokens       *auth.TokenService
	Logger       *logrus.Logger
	Dependencies []Dependency
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &appointmentHandlers{
		svc:      cfg.Service,
		validate: newRequestValidator(),
		log:      cfg.Logger,
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.create)
			r.With(RequireRole(appointment.RoleStaff, appointment.RoleAdmin)).Get("/", h.list)
			r.Get("/mine", h.listMine)
			r.With(RequireRole(appointment.RoleAdmin)).Get("/scoped", h.listByRole)

			r.Get("/{id}", h.get)
			r.Put("/{id}", h.update)
			r.Post("/{id}/cancel", h.cancel)
			r.With(RequireRole(appointment.RoleAdmin)).Delete("/{id}", h.remove)
		})

		r.Get("/doctors/{id}/availability", h.availability)
	})

	return r
}
