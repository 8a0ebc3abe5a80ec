package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusion_violation, raised by the no-overlap constraint on appointments.
const pgExclusionViolation = "23P01"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var calendarID *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&calendarID,
		&d.Timezone,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.CalendarID = calendarID
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var phone *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Phone = phone
	return &p, nil
}

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.StartTime,
		&w.EndTime,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}

	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var remindedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&remindedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.RemindedAt = remindedAt
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, calendar_id, timezone, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) FindContainingWindow(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*AvailabilityWindow, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, created_at, updated_at
		FROM availability_windows
		WHERE doctor_id = $1
		  AND start_time <= $2
		  AND end_time >= $3
		LIMIT 1
	`, doctorID, start, end)
	return scanWindow(row)
}

func (r *PgRepository) FindNextWindow(ctx context.Context, doctorID uuid.UUID, from time.Time) (*AvailabilityWindow, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, created_at, updated_at
		FROM availability_windows
		WHERE doctor_id = $1
		  AND end_time >= $2
		ORDER BY start_time ASC
		LIMIT 1
	`, doctorID, from)
	return scanWindow(row)
}

func (r *PgRepository) CreateWindow(ctx context.Context, w *AvailabilityWindow) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_windows (id, doctor_id, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
	`, w.ID, w.DoctorID, w.StartTime, w.EndTime)
	return err
}

func (r *PgRepository) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, start_time, end_time, status, reminded_at, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		  AND status = 'confirmed'
		  AND start_time < $3
		  AND end_time > $2
		LIMIT 1
	`, doctorID, start, end)
	return scanAppointment(row)
}

func (r *PgRepository) CreateConfirmedAppointment(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'confirmed', now(), now())
		RETURNING id, doctor_id, patient_id, start_time, end_time, status, reminded_at, created_at, updated_at
	`, id, doctorID, patientID, start, end)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, patient_id, start_time, end_time, status, reminded_at, created_at, updated_at
		FROM appointments
		WHERE status = 'confirmed'
		  AND reminded_at IS NULL
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time ASC
	`, now, now.Add(lead))
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

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminded_at = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, at)
	return err
}

// FindOrCreatePatient resolves a patient by email, inserting on first sight.
// The upsert keeps the lookup-or-create atomic: two concurrent bookings with
// the same new email land on one row. An existing patient's record is left
// unchanged apart from the no-op touch the RETURNING clause rides on.
func (r *PgRepository) FindOrCreatePatient(ctx context.Context, name, email string, phone *string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, name, email, phone, created_at, updated_at
	`, uuid.New(), name, email, phone)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}
