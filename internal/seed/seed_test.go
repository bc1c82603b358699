package seed

import (
	"context"
	"slices"
	"testing"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	repo := appointment.NewMemoryRepository()

	res, err := Directory(ctx, repo, 3, 10)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(res.DoctorIDs) != 3 || len(res.PatientIDs) != 10 {
		t.Fatalf("expected 3 doctors and 10 patients, got %d and %d", len(res.DoctorIDs), len(res.PatientIDs))
	}

	for _, id := range res.DoctorIDs {
		d, err := repo.FindDoctorByID(ctx, id)
		if err != nil {
			t.Fatalf("doctor %d: %v", id, err)
		}
		if d.Specialization == "" || d.Email == "" {
			t.Errorf("doctor %d missing fields: %+v", id, d)
		}
	}

	for _, id := range res.PatientIDs {
		p, err := repo.FindPatientByID(ctx, id)
		if err != nil {
			t.Fatalf("patient %d: %v", id, err)
		}
		switch p.BiologicalSex {
		case appointment.SexMale, appointment.SexFemale, appointment.SexIntersex, appointment.SexOther:
		default:
			t.Errorf("patient %d: unexpected sex %q", id, p.BiologicalSex)
		}
		if p.PrimaryDoctorID == nil || !slices.Contains(res.DoctorIDs, *p.PrimaryDoctorID) {
			t.Errorf("patient %d: primary doctor not among seeded doctors", id)
		}
		if p.DateOfBirth.IsZero() {
			t.Errorf("patient %d: missing date of birth", id)
		}
	}
}

func TestDirectory_NoDoctors(t *testing.T) {
	repo := appointment.NewMemoryRepository()

	res, err := Directory(context.Background(), repo, 0, 2)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, id := range res.PatientIDs {
		p, _ := repo.FindPatientByID(context.Background(), id)
		if p.PrimaryDoctorID != nil {
			t.Errorf("patient %d: expected no primary doctor", id)
		}
	}
}
