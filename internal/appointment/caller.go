package appointment

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RolePatient Role = "PATIENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// Caller is the authenticated party on whose behalf an operation runs.
// The set of implementations is closed; every variant decides for itself which
// appointments it may enumerate.
type Caller interface {
	Role() Role
	SubjectID() int64
	scope(ctx context.Context, repo Repository) ([]Appointment, error)
}

// PatientCaller sees the appointments booked for that patient.
type PatientCaller struct {
	PatientID int64
}

// StaffCaller sees the appointments assigned to that doctor.
type StaffCaller struct {
	DoctorID int64
}

// AdminCaller sees the appointments assigned to that doctor.
type AdminCaller struct {
	DoctorID int64
}

func (c PatientCaller) Role() Role       { return RolePatient }
func (c PatientCaller) SubjectID() int64 { return c.PatientID }
func (c PatientCaller) scope(ctx context.Context, repo Repository) ([]Appointment, error) {
	return repo.FindByPatientID(ctx, c.PatientID)
}

func (c StaffCaller) Role() Role       { return RoleStaff }
func (c StaffCaller) SubjectID() int64 { return c.DoctorID }
func (c StaffCaller) scope(ctx context.Context, repo Repository) ([]Appointment, error) {
	return repo.FindByDoctorID(ctx, c.DoctorID)
}

func (c AdminCaller) Role() Role       { return RoleAdmin }
func (c AdminCaller) SubjectID() int64 { return c.DoctorID }
func (c AdminCaller) scope(ctx context.Context, repo Repository) ([]Appointment, error) {
	return repo.FindByDoctorID(ctx, c.DoctorID)
}

// NewCaller interprets subjectID according to role. It is the only place a
// raw role value is turned into a Caller.
func NewCaller(role Role, subjectID int64) (Caller, error) {
	switch role {
	case RolePatient:
		return PatientCaller{PatientID: subjectID}, nil
	case RoleStaff:
		return StaffCaller{DoctorID: subjectID}, nil
	case RoleAdmin:
		return AdminCaller{DoctorID: subjectID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}
