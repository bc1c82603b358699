package api

import (
	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID int64  `json:"patientId" validate:"required,gt=0"`
	DoctorID  int64  `json:"doctorId" validate:"required,gt=0"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required"`
}

type UpdateAppointmentRequest struct {
	DoctorID int64  `json:"doctorId" validate:"required,gt=0"`
	Status   string `json:"status" validate:"required,oneof=BOOKED COMPLETED CANCELLED"`
}

type PatientResponse struct {
	ID            int64                     `json:"id"`
	FirstName     string                    `json:"firstName"`
	LastName      string                    `json:"lastName"`
	PhoneNumber   string                    `json:"phoneNumber"`
	Address       string                    `json:"address"`
	DateOfBirth   appointment.Date          `json:"dateOfBirth"`
	BiologicalSex appointment.BiologicalSex `json:"biologicalSex"`
	Allergies     []string                  `json:"allergies"`
}

type DoctorResponse struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Specialization string `json:"specialization"`
	Department     string `json:"department"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
}

type AppointmentResponse struct {
	ID      int64                         `json:"id"`
	Patient *PatientResponse              `json:"patient"`
	Doctor  *DoctorResponse               `json:"doctor"`
	Date    appointment.Date              `json:"date"`
	Time    appointment.TimeOfDay         `json:"time"`
	Status  appointment.AppointmentStatus `json:"status"`
}

type AvailabilityResponse struct {
	DoctorID  int64                 `json:"doctorId"`
	Date      appointment.Date      `json:"date"`
	Time      appointment.TimeOfDay `json:"time"`
	Available bool                  `json:"available"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toPatientResponse(p *appointment.Patient) *PatientResponse {
	if p == nil {
		return nil
	}
	allergies := p.Allergies
	if allergies == nil {
		allergies = []string{}
	}
	return &PatientResponse{
		ID:            p.ID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		PhoneNumber:   p.Phone,
		Address:       p.Address,
		DateOfBirth:   p.DateOfBirth,
		BiologicalSex: p.BiologicalSex,
		Allergies:     allergies,
	}
}

func toDoctorResponse(d *appointment.Doctor) *DoctorResponse {
	if d == nil {
		return nil
	}
	return &DoctorResponse{
		ID:             d.ID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Specialization: d.Specialization,
		Department:     d.Department,
		Phone:          d.Phone,
		Email:          d.Email,
	}
}

func toAppointmentResponse(a *appointment.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:      a.ID,
		Patient: toPatientResponse(a.Patient),
		Doctor:  toDoctorResponse(a.Doctor),
		Date:    a.Date,
		Time:    a.Time,
		Status:  a.Status,
	}
}

func toAppointmentResponses(list []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAppointmentResponse(&list[i]))
	}
	return out
}
