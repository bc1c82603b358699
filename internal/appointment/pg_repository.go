package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository implements both Repository and Directory on Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, appointment_time, status, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob time.Time

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&dob,
		&p.BiologicalSex,
		&p.Phone,
		&p.Address,
		&p.Allergies,
		&p.PrimaryDoctorID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.DateOfBirth = DateOf(dob)
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Specialization,
		&d.Department,
		&d.Phone,
		&d.Email,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var tod pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&tod,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(date)
	a.Time = TimeOfDayFromMicros(tod.Microseconds)
	return &a, nil
}

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Micros(), Valid: true}
}

func (r *PgRepository) queryAppointments(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Directory

func (r *PgRepository) FindPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, date_of_birth, biological_sex, phone, address,
		       allergies, primary_doctor_id, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) FindDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, specialization, department, phone, email, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// SavePatient inserts p when p.ID is zero and updates it otherwise.
func (r *PgRepository) SavePatient(ctx context.Context, p *Patient) error {
	allergies := p.Allergies
	if allergies == nil {
		allergies = []string{}
	}

	if p.ID == 0 {
		return r.pool.QueryRow(ctx, `
			INSERT INTO patients (first_name, last_name, date_of_birth, biological_sex, phone, address,
			                      allergies, primary_doctor_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			RETURNING id, created_at, updated_at
		`, p.FirstName, p.LastName, p.DateOfBirth.Time(), p.BiologicalSex, p.Phone, p.Address,
			allergies, p.PrimaryDoctorID).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	}

	err := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET first_name = $2, last_name = $3, date_of_birth = $4, biological_sex = $5, phone = $6,
		    address = $7, allergies = $8, primary_doctor_id = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.FirstName, p.LastName, p.DateOfBirth.Time(), p.BiologicalSex, p.Phone, p.Address,
		allergies, p.PrimaryDoctorID).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPatientNotFound
	}
	return err
}

// SaveDoctor inserts d when d.ID is zero and updates it otherwise.
func (r *PgRepository) SaveDoctor(ctx context.Context, d *Doctor) error {
	if d.ID == 0 {
		return r.pool.QueryRow(ctx, `
			INSERT INTO doctors (first_name, last_name, specialization, department, phone, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			RETURNING id, created_at, updated_at
		`, d.FirstName, d.LastName, d.Specialization, d.Department, d.Phone, d.Email).
			Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	}

	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET first_name = $2, last_name = $3, specialization = $4, department = $5, phone = $6,
		    email = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.FirstName, d.LastName, d.Specialization, d.Department, d.Phone, d.Email).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDoctorNotFound
	}
	return err
}

// Appointments

func (r *PgRepository) FindByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindAll(ctx context.Context) ([]Appointment, error) {
	return r.queryAppointments(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY id`)
}

func (r *PgRepository) FindByPatientID(ctx context.Context, patientID int64) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY id
	`, patientID)
}

func (r *PgRepository) FindByDoctorID(ctx context.Context, doctorID int64) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY id
	`, doctorID)
}

func (r *PgRepository) FindByStatus(ctx context.Context, status AppointmentStatus) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		ORDER BY appointment_date, appointment_time, id
	`, status)
}

func (r *PgRepository) FindBetween(ctx context.Context, from, to Date) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		ORDER BY appointment_date, appointment_time, id
	`, from.Time(), to.Time())
}

func (r *PgRepository) ExistsForSlot(ctx context.Context, slot Slot) (bool, error) {
	return slotTaken(ctx, r.pool, slot)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func slotTaken(ctx context.Context, q queryRower, slot Slot) (bool, error) {
	var taken bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status <> 'CANCELLED'
		)
	`, slot.DoctorID, slot.Date.Time(), pgTime(slot.Time)).Scan(&taken)
	return taken, err
}

// CreateIfSlotFree serializes inserts per slot with a transaction scoped
// advisory lock, so the existence check and the insert cannot interleave with
// another writer for the same slot, even across service instances.
func (r *PgRepository) CreateIfSlotFree(ctx context.Context, a Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slot := a.Slot()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, slot.Key()); err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	taken, err := slotTaken(ctx, tx, slot)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return nil, ErrSlotUnavailable
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, appointment_date, appointment_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+appointmentColumns,
		a.PatientID, a.DoctorID, a.Date.Time(), pgTime(a.Time), a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) Save(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $2,
		    status = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.DoctorID, a.Status)

	return scanAppointment(row)
}

func (r *PgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
