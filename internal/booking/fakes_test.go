package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking/internal/notify"
	redisclient "github.com/careslot/booking/internal/redis"
)

// memRepo is an in-memory Repository that mirrors the Postgres semantics,
// including the exclusion-constraint behavior of CreateConfirmedAppointment.
// Per-store query counters let tests assert which stores a rejected request
// never touched.
type memRepo struct {
	mu sync.Mutex

	doctors      map[uuid.UUID]*Doctor
	patientsByID map[uuid.UUID]*Patient
	patients     map[string]*Patient // keyed by email
	windows      []AvailabilityWindow
	appointments []Appointment

	windowQueries  int
	apptQueries    int
	patientQueries int

	createErr error // forced failure for CreateConfirmedAppointment
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		patientsByID: make(map[uuid.UUID]*Patient),
		patients:     make(map[string]*Patient),
	}
}

func (r *memRepo) addDoctor(name, tz string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.doctors[id] = &Doctor{ID: id, Name: name, Email: name + "@clinic.test", Timezone: tz}
	return id
}

func (r *memRepo) addWindow(doctorID uuid.UUID, start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.windows = append(r.windows, AvailabilityWindow{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
	})
}

func (r *memRepo) addConfirmed(doctorID uuid.UUID, start, end time.Time) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt := Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Status:    StatusConfirmed,
	}
	r.appointments = append(r.appointments, appt)
	return appt
}

func (r *memRepo) confirmedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appointments)
}

func (r *memRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *memRepo) FindContainingWindow(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*AvailabilityWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.windowQueries++
	for _, w := range r.windows {
		if w.DoctorID == doctorID && w.Contains(start, end) {
			copied := w
			return &copied, nil
		}
	}
	return nil, ErrWindowNotFound
}

func (r *memRepo) FindNextWindow(ctx context.Context, doctorID uuid.UUID, from time.Time) (*AvailabilityWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.windowQueries++
	var next *AvailabilityWindow
	for i, w := range r.windows {
		if w.DoctorID != doctorID || w.EndTime.Before(from) {
			continue
		}
		if next == nil || w.StartTime.Before(next.StartTime) {
			next = &r.windows[i]
		}
	}
	if next == nil {
		return nil, ErrWindowNotFound
	}
	copied := *next
	return &copied, nil
}

func (r *memRepo) CreateWindow(ctx context.Context, w *AvailabilityWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	r.windows = append(r.windows, *w)
	return nil
}

func (r *memRepo) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apptQueries++
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Status == StatusConfirmed && a.Overlaps(start, end) {
			copied := a
			return &copied, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) CreateConfirmedAppointment(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apptQueries++
	if r.createErr != nil {
		return nil, r.createErr
	}

	// Mirrors the exclusion constraint: the insert itself refuses overlap.
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Status == StatusConfirmed && a.Overlaps(start, end) {
			return nil, ErrSlotTaken
		}
	}

	appt := Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		StartTime: start,
		EndTime:   end,
		Status:    StatusConfirmed,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.appointments = append(r.appointments, appt)

	copied := appt
	return &copied, nil
}

func (r *memRepo) FindDueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.apptQueries++
	var due []Appointment
	for _, a := range r.appointments {
		if a.Status != StatusConfirmed || a.RemindedAt != nil {
			continue
		}
		if !a.StartTime.Before(now) && a.StartTime.Before(now.Add(lead)) {
			due = append(due, a)
		}
	}
	return due, nil
}

func (r *memRepo) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.appointments {
		if r.appointments[i].ID == id {
			t := at
			r.appointments[i].RemindedAt = &t
			return nil
		}
	}
	return ErrAppointmentNotFound
}

func (r *memRepo) FindOrCreatePatient(ctx context.Context, name, email string, phone *string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.patientQueries++
	if p, ok := r.patients[email]; ok {
		copied := *p
		return &copied, nil
	}

	p := &Patient{ID: uuid.New(), Name: name, Email: email, Phone: phone}
	r.patients[email] = p
	r.patientsByID[p.ID] = p

	copied := *p
	return &copied, nil
}

func (r *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.patientQueries++
	p, ok := r.patientsByID[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copied := *p
	return &copied, nil
}

// memLocker serializes critical sections per doctor with plain mutexes,
// standing in for the Redis lock.
type memLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *memLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// busyLocker always reports the lock as held elsewhere.
type busyLocker struct{}

func (busyLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// recordNotifier captures events; confirmations are signalled on a channel
// because the service dispatches them on their own goroutine.
type recordNotifier struct {
	mu        sync.Mutex
	reminders []notify.AppointmentEvent
	err       error

	confirmed chan notify.AppointmentEvent
}

func newRecordNotifier() *recordNotifier {
	return &recordNotifier{confirmed: make(chan notify.AppointmentEvent, 16)}
}

func (n *recordNotifier) AppointmentConfirmed(ctx context.Context, ev notify.AppointmentEvent) error {
	n.confirmed <- ev
	return n.err
}

func (n *recordNotifier) AppointmentReminder(ctx context.Context, ev notify.AppointmentEvent) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	n.reminders = append(n.reminders, ev)
	n.mu.Unlock()
	return nil
}

func (n *recordNotifier) reminderCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reminders)
}
