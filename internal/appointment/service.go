package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
)

var (
	ErrInvalidDate       = errors.New("appointment date must be today or in the future")
	ErrInvalidDateRange  = errors.New("range start must not be after range end")
	ErrSlotUnavailable   = errors.New("slot already has an active appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("unknown appointment status")
)

type CreateRequest struct {
	PatientID int64
	DoctorID  int64
	Date      Date
	Time      TimeOfDay
}

type UpdateRequest struct {
	DoctorID int64
	Status   AppointmentStatus
}

type Service struct {
	repo   Repository
	dir    Directory
	locker redisclient.Locker
	log    *logrus.Logger
	now    func() time.Time
}

func NewService(repo Repository, dir Directory, locker redisclient.Locker, log *logrus.Logger) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// CreateAppointment books a slot for a patient.
// The conflict check and the insert normally run under the slot lock. The
// repository insert is itself atomic per slot, so a busy lock defers to it and
// concurrent requests for the same slot still cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*AppointmentDetail, error) {
	patient, err := s.dir.FindPatientByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.dir.FindDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if req.Date.Before(DateOf(s.now().UTC())) {
		return nil, ErrInvalidDate
	}

	slot := Slot{DoctorID: req.DoctorID, Date: req.Date, Time: req.Time}
	var created *Appointment

	insert := func(ctx context.Context) error {
		appt, err := s.repo.CreateIfSlotFree(ctx, Appointment{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			Date:      req.Date,
			Time:      req.Time,
			Status:    StatusBooked,
		})
		if err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	}

	err = s.locker.WithSlotLock(ctx, slot.Key(), insert)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// A busy lock only means another writer is in flight, or a stale key
		// outlived its holder. The store decides whether the slot is taken.
		s.log.WithField("slot", slot.Key()).Debug("slot lock busy, deferring to store")
		err = insert(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"patient_id": created.PatientID,
		"doctor_id":  created.DoctorID,
		"date":       created.Date.String(),
		"time":       created.Time.String(),
	})

	return &AppointmentDetail{Appointment: *created, Patient: patient, Doctor: doctor}, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id int64) (*AppointmentDetail, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.hydrateOne(ctx, *appt)
}

func (s *Service) ListAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	appts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return s.hydrate(ctx, appts)
}

// ListAppointmentsFor returns the appointments visible to caller.
func (s *Service) ListAppointmentsFor(ctx context.Context, caller Caller) ([]AppointmentDetail, error) {
	appts, err := caller.scope(ctx, s.repo)
	if err != nil {
		return nil, fmt.Errorf("list appointments for %s %d: %w", caller.Role(), caller.SubjectID(), err)
	}
	return s.hydrate(ctx, appts)
}

// ListAppointmentsByRole interprets subjectID as a patient id for PATIENT and
// as a doctor id for STAFF and ADMIN.
func (s *Service) ListAppointmentsByRole(ctx context.Context, subjectID int64, role Role) ([]AppointmentDetail, error) {
	caller, err := NewCaller(role, subjectID)
	if err != nil {
		return nil, err
	}
	return s.ListAppointmentsFor(ctx, caller)
}

func (s *Service) ListAppointmentsByStatus(ctx context.Context, status AppointmentStatus) ([]AppointmentDetail, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	appts, err := s.repo.FindByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list appointments by status: %w", err)
	}
	return s.hydrate(ctx, appts)
}

// ListAppointmentsBetween returns appointments dated within [from, to].
func (s *Service) ListAppointmentsBetween(ctx context.Context, from, to Date) ([]AppointmentDetail, error) {
	if from.After(to) {
		return nil, ErrInvalidDateRange
	}
	appts, err := s.repo.FindBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments between %s and %s: %w", from, to, err)
	}
	return s.hydrate(ctx, appts)
}

// IsSlotAvailable reports whether slot holds no active appointment.
func (s *Service) IsSlotAvailable(ctx context.Context, slot Slot) (bool, error) {
	if _, err := s.dir.FindDoctorByID(ctx, slot.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return false, err
		}
		return false, fmt.Errorf("load doctor: %w", err)
	}

	taken, err := s.repo.ExistsForSlot(ctx, slot)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return !taken, nil
}

// UpdateAppointment reassigns the doctor and sets the status.
// The slot conflict check is not repeated for the new doctor.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, req UpdateRequest) (*AppointmentDetail, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	doctor, err := s.dir.FindDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	if !appt.Status.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, req.Status)
	}

	previous := *appt
	appt.DoctorID = req.DoctorID
	appt.Status = req.Status

	updated, err := s.repo.Save(ctx, *appt)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentUpdated, map[string]any{
		"from_doctor_id": previous.DoctorID,
		"to_doctor_id":   updated.DoctorID,
		"from_status":    previous.Status,
		"to_status":      updated.Status,
	})

	patient, err := s.findPatient(ctx, updated.PatientID)
	if err != nil {
		return nil, err
	}
	return &AppointmentDetail{Appointment: *updated, Patient: patient, Doctor: doctor}, nil
}

// CancelAppointment moves a booked appointment to cancelled. Cancelling an
// already cancelled appointment succeeds without writing anything.
func (s *Service) CancelAppointment(ctx context.Context, id int64) (*AppointmentDetail, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return s.hydrateOne(ctx, *appt)
	}
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, StatusCancelled)
	}

	appt.Status = StatusCancelled
	updated, err := s.repo.Save(ctx, *appt)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"doctor_id": updated.DoctorID,
		"date":      updated.Date.String(),
		"time":      updated.Time.String(),
	})

	return s.hydrateOne(ctx, *updated)
}

// DeleteAppointment removes the record entirely. It exists for
// administrators; regular flows cancel instead.
func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{
		"patient_id": appt.PatientID,
		"doctor_id":  appt.DoctorID,
		"status":     appt.Status,
	})
	return nil
}

func (s *Service) loadAppointment(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) findPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.dir.FindPatientByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve patient %d: %w", id, err)
	}
	return p, nil
}

func (s *Service) findDoctor(ctx context.Context, id int64) (*Doctor, error) {
	d, err := s.dir.FindDoctorByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor %d: %w", id, err)
	}
	return d, nil
}

func (s *Service) hydrateOne(ctx context.Context, appt Appointment) (*AppointmentDetail, error) {
	details, err := s.hydrate(ctx, []Appointment{appt})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// hydrate resolves patient and doctor for each appointment. Lookups are
// memoized for the duration of one call only.
func (s *Service) hydrate(ctx context.Context, appts []Appointment) ([]AppointmentDetail, error) {
	patients := make(map[int64]*Patient)
	doctors := make(map[int64]*Doctor)

	result := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		p, ok := patients[a.PatientID]
		if !ok {
			var err error
			if p, err = s.findPatient(ctx, a.PatientID); err != nil {
				return nil, err
			}
			patients[a.PatientID] = p
		}

		d, ok := doctors[a.DoctorID]
		if !ok {
			var err error
			if d, err = s.findDoctor(ctx, a.DoctorID); err != nil {
				return nil, err
			}
			doctors[a.DoctorID] = d
		}

		result = append(result, AppointmentDetail{Appointment: a, Patient: p, Doctor: d})
	}
	return result, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	entry := s.log.WithFields(logrus.Fields{
		"event":          eventType,
		"appointment_id": appointmentID,
	})

	data, err := json.Marshal(payload)
	if err != nil {
		entry.WithError(err).Warn("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		entry.WithError(err).Warn("failed to insert event log")
		return
	}
	entry.Info("appointment event recorded")
}
