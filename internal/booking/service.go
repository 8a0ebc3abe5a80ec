package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking/internal/config"
	"github.com/careslot/booking/internal/notify"
	redisclient "github.com/careslot/booking/internal/redis"
)

// Request is a booking attempt as it arrives from the API layer, datetimes
// still raw wall-clock strings.
type Request struct {
	DoctorID     uuid.UUID
	PatientName  string
	PatientEmail string
	PatientPhone *string
	Start        string
	End          string
	Timezone     string // optional, overrides the doctor's default
}

// Confirmation is a successful booking with its interval rendered in the
// operative timezone for the caller.
type Confirmation struct {
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Start         string
	End           string
	Timezone      string
}

type Service struct {
	repo          Repository
	locker        redisclient.Locker
	notifier      notify.Notifier
	fallbackTZ    string
	notifyTimeout time.Duration
	reminderLead  time.Duration
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Notifier, cfg config.Config) *Service {
	return &Service{
		repo:          repo,
		locker:        locker,
		notifier:      notifier,
		fallbackTZ:    cfg.DefaultTimezone,
		notifyTimeout: cfg.WebhookTimeout,
		reminderLead:  cfg.ReminderLead,
	}
}

// RequestAppointment runs the full booking pipeline: normalize the interval,
// resolve it against the doctor's availability, check for conflicts and
// commit a confirmed appointment. The conflict check and the insert run under
// a per-doctor lock so two concurrent requests for overlapping intervals
// cannot both pass the check; the storage layer's exclusion constraint backs
// the same invariant and also surfaces as ErrSlotTaken.
//
// The outbound webhook is dispatched after the appointment is committed and
// never affects the returned outcome.
func (s *Service) RequestAppointment(ctx context.Context, req Request) (*Confirmation, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	norm, err := normalizeInterval(req.Start, req.End, req.Timezone, doctor.Timezone, s.fallbackTZ)
	if err != nil {
		return nil, err
	}

	// Containment first: a request outside availability never touches the
	// appointment index, and can still be answered with a scheduling hint.
	if _, err := s.repo.FindContainingWindow(ctx, doctor.ID, norm.Start, norm.End); err != nil {
		if !errors.Is(err, ErrWindowNotFound) {
			return nil, fmt.Errorf("find containing window: %w", err)
		}
		return nil, s.suggestAlternative(ctx, doctor.ID, norm)
	}

	var (
		appt    *Appointment
		patient *Patient
	)

	err = s.locker.WithDoctorLock(ctx, doctor.ID, func(lockCtx context.Context) error {
		existing, err := s.repo.FindOverlapping(lockCtx, doctor.ID, norm.Start, norm.End)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check overlapping appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		patient, err = s.repo.FindOrCreatePatient(lockCtx, req.PatientName, req.PatientEmail, req.PatientPhone)
		if err != nil {
			return fmt.Errorf("find or create patient: %w", err)
		}

		appt, err = s.repo.CreateConfirmedAppointment(lockCtx, doctor.ID, patient.ID, norm.Start, norm.End)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				// Lost the race despite the lock (e.g. lock expired); the
				// caller sees an ordinary conflict.
				return ErrSlotTaken
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	s.dispatchConfirmed(doctor, patient, appt)

	return &Confirmation{
		AppointmentID: appt.ID,
		DoctorID:      doctor.ID,
		PatientID:     patient.ID,
		Start:         isoInZone(appt.StartTime, norm.Zone),
		End:           isoInZone(appt.EndTime, norm.Zone),
		Timezone:      norm.ZoneName,
	}, nil
}

// suggestAlternative proposes the earliest window that could still host a
// same-duration interval. The proposal is containment-only: it is not checked
// against existing appointments, a known trade-off kept from the original
// behavior.
func (s *Service) suggestAlternative(ctx context.Context, doctorID uuid.UUID, norm *normalizedInterval) error {
	next, err := s.repo.FindNextWindow(ctx, doctorID, norm.Start)
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return ErrNoAvailability
		}
		return fmt.Errorf("find next window: %w", err)
	}

	return &SuggestionError{Suggested: SuggestedSlot{
		Start:    isoInZone(next.StartTime, norm.Zone),
		End:      isoInZone(next.StartTime.Add(norm.Duration), norm.Zone),
		Timezone: norm.ZoneName,
	}}
}

// dispatchConfirmed hands the webhook off on its own goroutine with its own
// bounded context: the delivery may finish after the HTTP response, or not at
// all, without ever downgrading the booking.
func (s *Service) dispatchConfirmed(doctor *Doctor, patient *Patient, appt *Appointment) {
	ev := appointmentEvent(doctor, patient, appt)
	timeout := s.notifyTimeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.notifier.AppointmentConfirmed(ctx, ev); err != nil {
			log.Printf("confirmation webhook failed for appointment %s: %v", appt.ID, err)
		}
	}()
}

// SendDueReminders posts a reminder event for every confirmed appointment
// starting within the reminder lead that has not been reminded yet. A failed
// delivery is logged and left unmarked so the next run retries it.
func (s *Service) SendDueReminders(ctx context.Context, now time.Time) error {
	due, err := s.repo.FindDueReminders(ctx, now, s.reminderLead)
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, appt := range due {
		doctor, err := s.repo.GetDoctorByID(ctx, appt.DoctorID)
		if err != nil {
			log.Printf("reminder: load doctor for appointment %s: %v", appt.ID, err)
			continue
		}
		patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
		if err != nil {
			log.Printf("reminder: load patient for appointment %s: %v", appt.ID, err)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		err = s.notifier.AppointmentReminder(sendCtx, appointmentEvent(doctor, patient, &appt))
		cancel()
		if err != nil {
			log.Printf("reminder webhook failed for appointment %s: %v", appt.ID, err)
			continue
		}

		if err := s.repo.MarkReminded(ctx, appt.ID, now); err != nil {
			log.Printf("reminder: mark appointment %s: %v", appt.ID, err)
		}
	}

	return nil
}

func appointmentEvent(doctor *Doctor, patient *Patient, appt *Appointment) notify.AppointmentEvent {
	return notify.AppointmentEvent{
		ID: appt.ID.String(),
		Doctor: notify.DoctorInfo{
			ID:         doctor.ID.String(),
			Name:       doctor.Name,
			CalendarID: doctor.CalendarID,
			Timezone:   doctor.Timezone,
		},
		Patient: notify.PatientInfo{
			ID:    patient.ID.String(),
			Name:  patient.Name,
			Email: patient.Email,
			Phone: patient.Phone,
		},
		Start: appt.StartTime.UTC().Format(time.RFC3339),
		End:   appt.EndTime.UTC().Format(time.RFC3339),
	}
}
