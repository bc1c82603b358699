package appointment

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change is permitted.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether an appointment in status s may move to next.
// Staying in the same status is always allowed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == StatusBooked
}

type BiologicalSex string

const (
	SexMale     BiologicalSex = "MALE"
	SexFemale   BiologicalSex = "FEMALE"
	SexIntersex BiologicalSex = "INTERSEX"
	SexOther    BiologicalSex = "OTHER"
)

type Patient struct {
	ID              int64
	FirstName       string
	LastName        string
	DateOfBirth     Date
	BiologicalSex   BiologicalSex
	Phone           string
	Address         string
	Allergies       []string
	PrimaryDoctorID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Doctor struct {
	ID             int64
	FirstName      string
	LastName       string
	Specialization string
	Department     string
	Phone          string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Slot is the (doctor, date, time) tuple that may hold at most one
// non-cancelled appointment.
type Slot struct {
	DoctorID int64
	Date     Date
	Time     TimeOfDay
}

// Key is the lock key for the slot.
func (s Slot) Key() string {
	return fmt.Sprintf("slot:doctor:%d:%sT%s", s.DoctorID, s.Date, s.Time.clock())
}

type Appointment struct {
	ID        int64
	PatientID int64
	DoctorID  int64
	Date      Date
	Time      TimeOfDay
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Appointment) Slot() Slot {
	return Slot{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient *Patient
	Doctor  *Doctor
}
