package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrWindowNotFound      = errors.New("availability window not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// DoctorDirectory is the read-only doctor lookup the booking flow needs.
type DoctorDirectory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

// AvailabilityStore answers the two window queries the slot resolver runs.
type AvailabilityStore interface {
	// FindContainingWindow returns a window with start <= intervalStart and
	// end >= intervalEnd, or ErrWindowNotFound. Windows are never unioned: a
	// request spanning a gap between two windows has no containing window.
	FindContainingWindow(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*AvailabilityWindow, error)

	// FindNextWindow returns the earliest-starting window with end >= from,
	// or ErrWindowNotFound.
	FindNextWindow(ctx context.Context, doctorID uuid.UUID, from time.Time) (*AvailabilityWindow, error)

	CreateWindow(ctx context.Context, w *AvailabilityWindow) error
}

// AppointmentStore must uphold per-doctor non-overlap of confirmed rows at
// insert time (see CreateConfirmedAppointment).
type AppointmentStore interface {
	// FindOverlapping returns a confirmed appointment for the doctor that
	// half-open-overlaps [start, end), or ErrAppointmentNotFound.
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Appointment, error)

	// CreateConfirmedAppointment inserts a confirmed appointment. A losing
	// concurrent insert for an overlapping interval must come back as
	// ErrSlotTaken, not a storage error.
	CreateConfirmedAppointment(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error)

	// FindDueReminders returns confirmed appointments starting within
	// [now, now+lead) that have not been reminded yet.
	FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error)

	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PatientDirectory provides atomic lookup-or-create keyed by email: two
// concurrent calls with the same new email must resolve to one row.
type PatientDirectory interface {
	FindOrCreatePatient(ctx context.Context, name, email string, phone *string) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Repository bundles everything the service needs from storage.
type Repository interface {
	DoctorDirectory
	AvailabilityStore
	AppointmentStore
	PatientDirectory
}
