package appointment

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Directory resolves the patients and doctors an appointment refers to.
type Directory interface {
	FindPatientByID(ctx context.Context, id int64) (*Patient, error)
	FindDoctorByID(ctx context.Context, id int64) (*Doctor, error)

	SavePatient(ctx context.Context, p *Patient) error
	SaveDoctor(ctx context.Context, d *Doctor) error
}

// Repository contains all appointment storage needed by the service.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Appointment, error)
	FindAll(ctx context.Context) ([]Appointment, error)
	FindByPatientID(ctx context.Context, patientID int64) ([]Appointment, error)
	FindByDoctorID(ctx context.Context, doctorID int64) ([]Appointment, error)
	FindByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error)
	FindBetween(ctx context.Context, from, to Date) ([]Appointment, error)

	// For conflict checks
	ExistsForSlot(ctx context.Context, slot Slot) (bool, error)

	// CreateIfSlotFree inserts a and assigns its ID, atomically with respect
	// to other inserts for the same slot. It returns ErrSlotUnavailable when a
	// non-cancelled appointment already holds the slot.
	CreateIfSlotFree(ctx context.Context, a Appointment) (*Appointment, error)
	Save(ctx context.Context, a Appointment) (*Appointment, error)
	Delete(ctx context.Context, id int64) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
