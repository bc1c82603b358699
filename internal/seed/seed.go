// Package seed fills a clinic directory with fake doctors and patients.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var allergens = []string{"penicillin", "latex", "peanuts", "shellfish", "pollen", "ibuprofen"}

var sexes = []string{
	string(appointment.SexMale),
	string(appointment.SexFemale),
	string(appointment.SexIntersex),
	string(appointment.SexOther),
}

// Result lists the identifiers the store assigned.
type Result struct {
	DoctorIDs  []int64
	PatientIDs []int64
}

// Directory seeds doctors first so patients can reference a primary doctor.
func Directory(ctx context.Context, dir appointment.Directory, doctors, patients int) (Result, error) {
	var res Result

	for i := 0; i < doctors; i++ {
		d := fakeDoctor()
		if err := dir.SaveDoctor(ctx, d); err != nil {
			return res, fmt.Errorf("save doctor %d: %w", i+1, err)
		}
		res.DoctorIDs = append(res.DoctorIDs, d.ID)
	}

	for i := 0; i < patients; i++ {
		p := fakePatient(res.DoctorIDs)
		if err := dir.SavePatient(ctx, p); err != nil {
			return res, fmt.Errorf("save patient %d: %w", i+1, err)
		}
		res.PatientIDs = append(res.PatientIDs, p.ID)
	}

	return res, nil
}

func fakeDoctor() *appointment.Doctor {
	spec := specialties[gofakeit.Number(0, len(specialties)-1)]
	return &appointment.Doctor{
		FirstName:      gofakeit.FirstName(),
		LastName:       gofakeit.LastName(),
		Specialization: spec,
		Department:     spec,
		Phone:          gofakeit.Phone(),
		Email:          gofakeit.Email(),
	}
}

func fakePatient(doctorIDs []int64) *appointment.Patient {
	now := time.Now()
	dob := gofakeit.DateRange(now.AddDate(-90, 0, 0), now.AddDate(-1, 0, 0))

	var allergies []string
	for range gofakeit.Number(0, 2) {
		allergies = append(allergies, gofakeit.RandomString(allergens))
	}

	p := &appointment.Patient{
		FirstName:     gofakeit.FirstName(),
		LastName:      gofakeit.LastName(),
		DateOfBirth:   appointment.DateOf(dob),
		BiologicalSex: appointment.BiologicalSex(gofakeit.RandomString(sexes)),
		Phone:         gofakeit.Phone(),
		Address:       fmt.Sprintf("%s, %s", gofakeit.Street(), gofakeit.City()),
		Allergies:     allergies,
	}
	if len(doctorIDs) > 0 {
		id := doctorIDs[gofakeit.Number(0, len(doctorIDs)-1)]
		p.PrimaryDoctorID = &id
	}
	return p
}
