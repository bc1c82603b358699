package appointment

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// -- Fixtures --

var testToday = time.Date(2030, time.January, 1, 8, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []int64{1, 5, 7, 8} {
		p := &Patient{ID: id, FirstName: "Pat", LastName: "Ient", BiologicalSex: SexOther, Allergies: []string{"latex"}}
		if err := repo.SavePatient(ctx, p); err != nil {
			t.Fatalf("seed patient: %v", err)
		}
	}
	for _, id := range []int64{2, 3, 9} {
		d := &Doctor{ID: id, FirstName: "Doc", LastName: "Tor", Specialization: "Cardiology"}
		if err := repo.SaveDoctor(ctx, d); err != nil {
			t.Fatalf("seed doctor: %v", err)
		}
	}

	svc := NewService(repo, repo, redisclient.NewLocalSlotLocker(), testLogger())
	svc.now = func() time.Time { return testToday }
	return svc, repo
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return tod
}

func mustCreate(t *testing.T, svc *Service, req CreateRequest) *AppointmentDetail {
	t.Helper()
	appt, err := svc.CreateAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return appt
}

// passthroughLocker grants every lock, leaving atomicity to the repository.
type passthroughLocker struct{}

func (passthroughLocker) WithSlotLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// failingRepo simulates a storage outage on reads.
type failingRepo struct {
	*MemoryRepository
}

func (failingRepo) FindByID(context.Context, int64) (*Appointment, error) {
	return nil, errors.New("connection reset")
}

// busyLocker reports every slot lock as held, like a stale key left in Redis.
type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// stallingRepo parks the first insert until release is closed and then fails
// it. Later inserts go straight to the memory store.
type stallingRepo struct {
	*MemoryRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *stallingRepo) CreateIfSlotFree(ctx context.Context, a Appointment) (*Appointment, error) {
	first := false
	r.once.Do(func() { first = true })
	if !first {
		return r.MemoryRepository.CreateIfSlotFree(ctx, a)
	}
	close(r.entered)
	<-r.release
	return nil, errors.New("connection reset")
}

// -- Create --

func TestService_CreateAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	req := CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")}

	appt := mustCreate(t, svc, req)
	if appt.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if appt.Status != StatusBooked {
		t.Errorf("expected BOOKED, got %s", appt.Status)
	}
	if appt.Patient == nil || appt.Patient.ID != 1 {
		t.Errorf("expected patient 1 to be resolved, got %+v", appt.Patient)
	}
	if appt.Doctor == nil || appt.Doctor.ID != 2 {
		t.Errorf("expected doctor 2 to be resolved, got %+v", appt.Doctor)
	}
}

func TestService_CreateAppointment_Today(t *testing.T) {
	svc, _ := newTestService(t)
	req := CreateRequest{PatientID: 1, DoctorID: 2, Date: DateOf(testToday), Time: mustTime(t, "07:00")}
	if _, err := svc.CreateAppointment(context.Background(), req); err != nil {
		t.Fatalf("expected today's date to be accepted, got %v", err)
	}
}

func TestService_CreateAppointment_TodayIsUTC(t *testing.T) {
	svc, _ := newTestService(t)
	// 2030-01-02 03:00 at UTC+14 is still 2030-01-01 in UTC.
	svc.now = func() time.Time {
		return time.Date(2030, time.January, 2, 3, 0, 0, 0, time.FixedZone("LINT", 14*3600))
	}

	req := CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-01"), Time: mustTime(t, "16:00")}
	if _, err := svc.CreateAppointment(context.Background(), req); err != nil {
		t.Fatalf("expected the UTC date to count as today, got %v", err)
	}
}

func TestService_CreateAppointment_HolderFailureFreesSlot(t *testing.T) {
	svc, repo := newTestService(t)
	stalled := &stallingRepo{MemoryRepository: repo, entered: make(chan struct{}), release: make(chan struct{})}
	svc.repo = stalled

	date, at := mustDate(t, "2030-01-10"), mustTime(t, "09:00")
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.CreateAppointment(context.Background(), CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: at})
		firstErr <- err
	}()
	<-stalled.entered

	// The first request holds the slot lock while its insert is stuck.
	second, err := svc.CreateAppointment(context.Background(), CreateRequest{PatientID: 5, DoctorID: 2, Date: date, Time: at})
	if err != nil {
		t.Fatalf("expected the second create to book the free slot, got %v", err)
	}
	if second.PatientID != 5 {
		t.Errorf("expected patient 5, got %d", second.PatientID)
	}

	close(stalled.release)
	err = <-firstErr
	if err == nil {
		t.Fatal("expected the stalled create to fail")
	}
	if errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("a storage failure must not look like a conflict: %v", err)
	}

	taken, err := repo.ExistsForSlot(context.Background(), Slot{DoctorID: 2, Date: date, Time: at})
	if err != nil {
		t.Fatalf("exists for slot: %v", err)
	}
	if !taken {
		t.Error("expected the slot to be held by the second booking")
	}
}

func TestService_CreateAppointment_BusyLockDefersToStore(t *testing.T) {
	svc, _ := newTestService(t)
	svc.locker = busyLocker{}
	req := CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")}

	if _, err := svc.CreateAppointment(context.Background(), req); err != nil {
		t.Fatalf("expected a free slot to book despite the busy lock, got %v", err)
	}

	req.PatientID = 5
	if _, err := svc.CreateAppointment(context.Background(), req); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable for the taken slot, got %v", err)
	}
}

func TestService_CreateAppointment_ValidationErrors(t *testing.T) {
	svc, repo := newTestService(t)
	date := mustDate(t, "2030-01-10")
	at := mustTime(t, "09:00")

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"unknown patient", CreateRequest{PatientID: 404, DoctorID: 2, Date: date, Time: at}, ErrPatientNotFound},
		{"unknown doctor", CreateRequest{PatientID: 1, DoctorID: 404, Date: date, Time: at}, ErrDoctorNotFound},
		{"past date", CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2029-12-31"), Time: at}, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAppointment(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	all, _ := repo.FindAll(context.Background())
	if len(all) != 0 {
		t.Errorf("expected nothing persisted, got %d appointments", len(all))
	}
}

func TestService_CreateAppointment_SlotUniqueness(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := mustDate(t, "2030-01-10")
	at := mustTime(t, "09:00")

	first := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: at})

	_, err := svc.CreateAppointment(ctx, CreateRequest{PatientID: 5, DoctorID: 2, Date: date, Time: at})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable while BOOKED, got %v", err)
	}

	if _, err := svc.UpdateAppointment(ctx, first.ID, UpdateRequest{DoctorID: 2, Status: StatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = svc.CreateAppointment(ctx, CreateRequest{PatientID: 5, DoctorID: 2, Date: date, Time: at})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable while COMPLETED, got %v", err)
	}

	// Same doctor, other time and other doctor, same time are independent slots.
	mustCreate(t, svc, CreateRequest{PatientID: 5, DoctorID: 2, Date: date, Time: mustTime(t, "09:30")})
	mustCreate(t, svc, CreateRequest{PatientID: 5, DoctorID: 3, Date: date, Time: at})
}

func TestService_CreateAppointment_ScenarioCancelReleasesSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := mustDate(t, "2030-01-10")
	at := mustTime(t, "09:00")

	first := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: at})
	if first.Status != StatusBooked {
		t.Fatalf("expected BOOKED, got %s", first.Status)
	}

	second := CreateRequest{PatientID: 5, DoctorID: 2, Date: date, Time: at}
	if _, err := svc.CreateAppointment(ctx, second); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	cancelled, err := svc.CancelAppointment(ctx, first.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	rebooked, err := svc.CreateAppointment(ctx, second)
	if err != nil {
		t.Fatalf("expected rebooking to succeed, got %v", err)
	}
	if rebooked.ID == first.ID {
		t.Error("expected a fresh appointment ID")
	}
}

func testConcurrentCreates(t *testing.T, svc *Service) {
	t.Helper()
	const workers = 32
	req := CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-02-01"), Time: mustTime(t, "10:00")}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateAppointment(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one success, got %d", successes)
	}
	if conflicts != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicts)
	}
	if len(others) != 0 {
		t.Errorf("unexpected errors: %v", others)
	}
}

func TestService_CreateAppointment_ConcurrentSameSlot(t *testing.T) {
	svc, _ := newTestService(t)
	testConcurrentCreates(t, svc)
}

func TestService_CreateAppointment_ConcurrentSameSlotWithoutLocker(t *testing.T) {
	svc, _ := newTestService(t)
	svc.locker = passthroughLocker{}
	testConcurrentCreates(t, svc)
}

// -- Read --

func TestService_GetAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})

	got, err := svc.GetAppointment(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != created.ID || got.Patient.ID != 1 || got.Doctor.ID != 2 {
		t.Errorf("unexpected appointment %+v", got)
	}

	if _, err := svc.GetAppointment(context.Background(), 999); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestService_GetAppointment_StorageFailureIsNotDomainError(t *testing.T) {
	svc, repo := newTestService(t)
	svc.repo = failingRepo{repo}

	_, err := svc.GetAppointment(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, domainErr := range []error{ErrAppointmentNotFound, ErrPatientNotFound, ErrDoctorNotFound, ErrSlotUnavailable, ErrInvalidTransition} {
		if errors.Is(err, domainErr) {
			t.Errorf("storage failure must not look like %v", domainErr)
		}
	}
}

func TestService_ListAppointments(t *testing.T) {
	svc, _ := newTestService(t)
	date := mustDate(t, "2030-01-10")
	mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: mustTime(t, "09:00")})
	mustCreate(t, svc, CreateRequest{PatientID: 5, DoctorID: 3, Date: date, Time: mustTime(t, "09:00")})

	all, err := svc.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(all))
	}
	if all[0].ID > all[1].ID {
		t.Error("expected stable ordering by ID")
	}
}

func TestService_ListAppointmentsByRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := mustDate(t, "2030-01-10")

	fixtures := []struct {
		patient, doctor int64
		at              string
	}{
		{7, 2, "09:00"},
		{7, 3, "10:00"},
		{1, 3, "11:00"},
		{5, 2, "12:00"},
		{8, 9, "13:00"},
	}
	for _, f := range fixtures {
		mustCreate(t, svc, CreateRequest{PatientID: f.patient, DoctorID: f.doctor, Date: date, Time: mustTime(t, f.at)})
	}

	patientView, err := svc.ListAppointmentsByRole(ctx, 7, RolePatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patientView) != 2 {
		t.Errorf("expected 2 appointments for patient 7, got %d", len(patientView))
	}
	for _, a := range patientView {
		if a.PatientID != 7 {
			t.Errorf("patient view leaked appointment of patient %d", a.PatientID)
		}
	}

	for _, role := range []Role{RoleStaff, RoleAdmin} {
		doctorView, err := svc.ListAppointmentsByRole(ctx, 3, role)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", role, err)
		}
		if len(doctorView) != 2 {
			t.Errorf("%s: expected 2 appointments for doctor 3, got %d", role, len(doctorView))
		}
		for _, a := range doctorView {
			if a.DoctorID != 3 {
				t.Errorf("%s: doctor view leaked appointment of doctor %d", role, a.DoctorID)
			}
		}
	}

	if _, err := svc.ListAppointmentsByRole(ctx, 3, Role("NURSE")); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestService_ListAppointmentsByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	later := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-12"), Time: mustTime(t, "09:00")})
	earlier := mustCreate(t, svc, CreateRequest{PatientID: 5, DoctorID: 2, Date: mustDate(t, "2030-01-11"), Time: mustTime(t, "09:00")})
	cancelled := mustCreate(t, svc, CreateRequest{PatientID: 7, DoctorID: 3, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})
	if _, err := svc.CancelAppointment(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	booked, err := svc.ListAppointmentsByStatus(ctx, StatusBooked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(booked) != 2 || booked[0].ID != earlier.ID || booked[1].ID != later.ID {
		t.Errorf("expected booked appointments ordered by date, got %+v", booked)
	}

	if _, err := svc.ListAppointmentsByStatus(ctx, AppointmentStatus("LOST")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestService_ListAppointmentsBetween(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, d := range []string{"2030-01-09", "2030-01-10", "2030-01-15", "2030-01-16"} {
		mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, d), Time: mustTime(t, "09:00")})
	}

	got, err := svc.ListAppointmentsBetween(ctx, mustDate(t, "2030-01-10"), mustDate(t, "2030-01-15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 appointments in range, got %d", len(got))
	}
	if got[0].Date.String() != "2030-01-10" || got[1].Date.String() != "2030-01-15" {
		t.Errorf("unexpected range result %s, %s", got[0].Date, got[1].Date)
	}

	_, err = svc.ListAppointmentsBetween(ctx, mustDate(t, "2030-01-15"), mustDate(t, "2030-01-10"))
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestService_IsSlotAvailable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	slot := Slot{DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")}

	free, err := svc.IsSlotAvailable(ctx, slot)
	if err != nil || !free {
		t.Fatalf("expected free slot, got %v, %v", free, err)
	}

	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: slot.DoctorID, Date: slot.Date, Time: slot.Time})
	if free, _ := svc.IsSlotAvailable(ctx, slot); free {
		t.Error("expected slot to be taken")
	}

	if _, err := svc.CancelAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if free, _ := svc.IsSlotAvailable(ctx, slot); !free {
		t.Error("expected cancelled slot to be free again")
	}

	if _, err := svc.IsSlotAvailable(ctx, Slot{DoctorID: 404, Date: slot.Date, Time: slot.Time}); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

// -- Update --

func TestService_UpdateAppointment_ScenarioCompleteThenRevert(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})

	updated, err := svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{DoctorID: 9, Status: StatusCompleted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DoctorID != 9 || updated.Doctor.ID != 9 {
		t.Errorf("expected doctor 9, got %d", updated.DoctorID)
	}
	if updated.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", updated.Status)
	}
	if updated.PatientID != 1 {
		t.Errorf("patient must not change, got %d", updated.PatientID)
	}

	_, err = svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{DoctorID: 9, Status: StatusBooked})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	stored, _ := svc.GetAppointment(ctx, appt.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("failed update must not persist, status is %s", stored.Status)
	}
}

func TestService_UpdateAppointment_TerminalAbsorption(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := mustDate(t, "2030-01-10")

	completed := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: mustTime(t, "09:00")})
	if _, err := svc.UpdateAppointment(ctx, completed.ID, UpdateRequest{DoctorID: 2, Status: StatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	cancelled := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: mustTime(t, "10:00")})
	if _, err := svc.CancelAppointment(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	tests := []struct {
		name string
		id   int64
		to   AppointmentStatus
	}{
		{"completed to booked", completed.ID, StatusBooked},
		{"completed to cancelled", completed.ID, StatusCancelled},
		{"cancelled to booked", cancelled.ID, StatusBooked},
		{"cancelled to completed", cancelled.ID, StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateAppointment(ctx, tt.id, UpdateRequest{DoctorID: 2, Status: tt.to})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}

	// Keeping the terminal status while reassigning the doctor is allowed.
	if _, err := svc.UpdateAppointment(ctx, completed.ID, UpdateRequest{DoctorID: 3, Status: StatusCompleted}); err != nil {
		t.Errorf("expected same-status update to succeed, got %v", err)
	}
}

func TestService_UpdateAppointment_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})

	if _, err := svc.UpdateAppointment(ctx, 999, UpdateRequest{DoctorID: 2, Status: StatusCompleted}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
	if _, err := svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{DoctorID: 404, Status: StatusCompleted}); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
	if _, err := svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{DoctorID: 2, Status: "DONE"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	stored, _ := svc.GetAppointment(ctx, appt.ID)
	if stored.DoctorID != 2 || stored.Status != StatusBooked {
		t.Errorf("failed updates must not persist, got doctor %d status %s", stored.DoctorID, stored.Status)
	}
}

// Reassigning a doctor does not re-check the slot, so an update can place two
// active appointments on the same doctor/date/time. This pins that behavior.
func TestService_UpdateAppointment_DoctorReassignmentSkipsConflictCheck(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	date := mustDate(t, "2030-01-10")
	at := mustTime(t, "09:00")

	mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: date, Time: at})
	other := mustCreate(t, svc, CreateRequest{PatientID: 5, DoctorID: 3, Date: date, Time: at})

	if _, err := svc.UpdateAppointment(ctx, other.ID, UpdateRequest{DoctorID: 2, Status: StatusBooked}); err != nil {
		t.Fatalf("expected reassignment to succeed, got %v", err)
	}

	onDoctor, _ := repo.FindByDoctorID(ctx, 2)
	active := 0
	for _, a := range onDoctor {
		if a.Date == date && a.Time == at && a.Status != StatusCancelled {
			active++
		}
	}
	if active != 2 {
		t.Errorf("expected the reassignment to double-book the slot, got %d active", active)
	}
}

// -- Cancel --

func TestService_CancelAppointment_Idempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})

	first, err := svc.CancelAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	eventsAfterFirst := len(repo.Events())

	second, err := svc.CancelAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("expected re-cancel to succeed, got %v", err)
	}
	if second.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", second.Status)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("re-cancel must not rewrite the record")
	}
	if len(repo.Events()) != eventsAfterFirst {
		t.Error("re-cancel must not record another event")
	}
}

func TestService_CancelAppointment_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CancelAppointment(ctx, 999); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}

	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})
	if _, err := svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{DoctorID: 2, Status: StatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.CancelAppointment(ctx, appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition cancelling a completed appointment, got %v", err)
	}
}

// -- Delete --

func TestService_DeleteAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})

	if err := svc.DeleteAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetAppointment(ctx, appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected deleted appointment to be gone, got %v", err)
	}
	if err := svc.DeleteAppointment(ctx, appt.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

// -- Events --

func TestService_RecordsLifecycleEvents(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	appt := mustCreate(t, svc, CreateRequest{PatientID: 1, DoctorID: 2, Date: mustDate(t, "2030-01-10"), Time: mustTime(t, "09:00")})
	if _, err := svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{DoctorID: 3, Status: StatusBooked}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.CancelAppointment(ctx, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	events := repo.Events()
	want := []string{EventAppointmentCreated, EventAppointmentUpdated, EventAppointmentCancelled}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if ev.EventType != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], ev.EventType)
		}
		if ev.AppointmentID == nil || *ev.AppointmentID != appt.ID {
			t.Errorf("event %d: expected appointment %d", i, appt.ID)
		}
	}
}
