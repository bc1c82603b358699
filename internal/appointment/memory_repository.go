package appointment

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository implements Repository and Directory in process memory.
// All methods hand out copies, so callers never share records with the store.
type MemoryRepository struct {
	mu           sync.RWMutex
	patients     map[int64]Patient
	doctors      map[int64]Doctor
	appointments map[int64]Appointment
	events       []EventLog

	nextPatientID     int64
	nextDoctorID      int64
	nextAppointmentID int64
	nextEventID       int64

	now func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     make(map[int64]Patient),
		doctors:      make(map[int64]Doctor),
		appointments: make(map[int64]Appointment),
		now:          time.Now,
	}
}

func clonePatient(p Patient) *Patient {
	p.Allergies = slices.Clone(p.Allergies)
	if p.PrimaryDoctorID != nil {
		id := *p.PrimaryDoctorID
		p.PrimaryDoctorID = &id
	}
	return &p
}

func (m *MemoryRepository) FindPatientByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return clonePatient(p), nil
}

func (m *MemoryRepository) FindDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

// SavePatient assigns the next free ID when p.ID is zero. A caller-chosen ID
// is kept, which lets fixtures pin identifiers.
func (m *MemoryRepository) SavePatient(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if p.ID == 0 {
		m.nextPatientID++
		p.ID = m.nextPatientID
	} else if p.ID > m.nextPatientID {
		m.nextPatientID = p.ID
	}
	if existing, ok := m.patients[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.patients[p.ID] = *clonePatient(*p)
	return nil
}

// SaveDoctor follows the same ID rules as SavePatient.
func (m *MemoryRepository) SaveDoctor(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if d.ID == 0 {
		m.nextDoctorID++
		d.ID = m.nextDoctorID
	} else if d.ID > m.nextDoctorID {
		m.nextDoctorID = d.ID
	}
	if existing, ok := m.doctors[d.ID]; ok {
		d.CreatedAt = existing.CreatedAt
	} else {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	m.doctors[d.ID] = *d
	return nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id int64) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) filter(keep func(Appointment) bool) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if keep(a) {
			result = append(result, a)
		}
	}
	slices.SortFunc(result, func(a, b Appointment) int { return compareInt64(a.ID, b.ID) })
	return result
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func byDateTime(a, b Appointment) int {
	if c := a.Date.Time().Compare(b.Date.Time()); c != 0 {
		return c
	}
	if c := compareInt64(a.Time.Micros(), b.Time.Micros()); c != 0 {
		return c
	}
	return compareInt64(a.ID, b.ID)
}

func (m *MemoryRepository) FindAll(_ context.Context) ([]Appointment, error) {
	return m.filter(func(Appointment) bool { return true }), nil
}

func (m *MemoryRepository) FindByPatientID(_ context.Context, patientID int64) ([]Appointment, error) {
	return m.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *MemoryRepository) FindByDoctorID(_ context.Context, doctorID int64) ([]Appointment, error) {
	return m.filter(func(a Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *MemoryRepository) FindByStatus(_ context.Context, status AppointmentStatus) ([]Appointment, error) {
	result := m.filter(func(a Appointment) bool { return a.Status == status })
	slices.SortFunc(result, byDateTime)
	return result, nil
}

func (m *MemoryRepository) FindBetween(_ context.Context, from, to Date) ([]Appointment, error) {
	result := m.filter(func(a Appointment) bool { return !a.Date.Before(from) && !a.Date.After(to) })
	slices.SortFunc(result, byDateTime)
	return result, nil
}

func (m *MemoryRepository) ExistsForSlot(_ context.Context, slot Slot) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slotTakenLocked(slot), nil
}

func (m *MemoryRepository) slotTakenLocked(slot Slot) bool {
	for _, a := range m.appointments {
		if a.Status != StatusCancelled && a.Slot() == slot {
			return true
		}
	}
	return false
}

func (m *MemoryRepository) CreateIfSlotFree(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slotTakenLocked(a.Slot()) {
		return nil, ErrSlotUnavailable
	}

	now := m.now()
	m.nextAppointmentID++
	a.ID = m.nextAppointmentID
	a.CreatedAt = now
	a.UpdatedAt = now
	m.appointments[a.ID] = a
	return &a, nil
}

// Save replaces the doctor and status of an existing appointment, mirroring
// the columns the Postgres implementation updates.
func (m *MemoryRepository) Save(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	existing.DoctorID = a.DoctorID
	existing.Status = a.Status
	existing.UpdatedAt = m.now()
	m.appointments[a.ID] = existing
	return &existing, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	ev.ID = m.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns the recorded event log in insertion order.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}
