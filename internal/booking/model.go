package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

// The schema knows all four statuses; the booking flow only ever writes
// confirmed rows.
const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusSuggested AppointmentStatus = "suggested"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Doctor struct {
	ID         uuid.UUID
	Name       string
	Email      string
	CalendarID *string
	Timezone   string // IANA zone, e.g. Asia/Kolkata
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is a contiguous period during which one doctor is
// bookable. Instants are absolute (stored UTC); multiple non-overlapping
// windows may exist per doctor.
type AvailabilityWindow struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	PatientID  uuid.UUID
	StartTime  time.Time
	EndTime    time.Time
	Status     AppointmentStatus
	RemindedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Overlaps reports half-open interval overlap: each start strictly before
// the other's end. Boundary-touching appointments do not overlap.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}

// Contains reports closed containment: a window hosts the interval even when
// the interval touches its boundaries exactly.
func (w AvailabilityWindow) Contains(start, end time.Time) bool {
	return !w.StartTime.After(start) && !w.EndTime.Before(end)
}
