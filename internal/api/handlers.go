package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type appointmentHandlers struct {
	svc      AppointmentService
	validate *requestValidator
	log      *logrus.Logger
}

func (h *appointmentHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := h.validate.Check(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Fields: fields})
		return
	}

	date, err := appointment.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be an ISO-8601 calendar date")
		return
	}
	at, err := appointment.ParseTimeOfDay(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM or HH:MM:SS")
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), appointment.CreateRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      at,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		list []appointment.AppointmentDetail
		err  error
	)
	switch {
	case q.Get("status") != "":
		list, err = h.svc.ListAppointmentsByStatus(r.Context(), appointment.AppointmentStatus(q.Get("status")))
	case q.Get("from") != "" || q.Get("to") != "":
		from, ferr := appointment.ParseDate(q.Get("from"))
		to, terr := appointment.ParseDate(q.Get("to"))
		if ferr != nil || terr != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_range", "from and to must both be ISO-8601 calendar dates")
			return
		}
		list, err = h.svc.ListAppointmentsBetween(r.Context(), from, to)
	default:
		list, err = h.svc.ListAppointments(r.Context())
	}
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

func (h *appointmentHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "caller not resolved")
		return
	}

	list, err := h.svc.ListAppointmentsFor(r.Context(), caller)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

func (h *appointmentHandlers) listByRole(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subjectID, err := strconv.ParseInt(q.Get("subjectId"), 10, 64)
	if err != nil || subjectID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_subject_id", "subjectId must be a positive integer")
		return
	}

	list, err := h.svc.ListAppointmentsByRole(r.Context(), subjectID, appointment.Role(q.Get("role")))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponses(list))
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if fields := h.validate.Check(req); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Fields: fields})
		return
	}

	appt, err := h.svc.UpdateAppointment(r.Context(), id, appointment.UpdateRequest{
		DoctorID: req.DoctorID,
		Status:   appointment.AppointmentStatus(req.Status),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandlers) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteAppointment(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *appointmentHandlers) availability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	q := r.URL.Query()
	date, err := appointment.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be an ISO-8601 calendar date")
		return
	}
	at, err := appointment.ParseTimeOfDay(q.Get("time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM or HH:MM:SS")
		return
	}

	slot := appointment.Slot{DoctorID: doctorID, Date: date, Time: at}
	free, err := h.svc.IsSlotAvailable(r.Context(), slot)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:  doctorID,
		Date:      date,
		Time:      at,
		Available: free,
	})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *appointmentHandlers) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, appointment.ErrInvalidDateRange):
		writeError(w, http.StatusBadRequest, "invalid_date_range", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, appointment.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, "unknown_role", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		h.log.WithError(err).WithField("request_id", GetRequestID(r.Context())).Error("unhandled service error")
		writeError(w, http.StatusInternalServerError, "internal_error", "the server failed to process the request")
	}
}
