package booking

import "errors"

var (
	ErrMalformedTime   = errors.New("invalid start/end datetime format, use ISO format")
	ErrUnknownTimezone = errors.New("unknown timezone")
	ErrInvalidInterval = errors.New("end must be after start")

	ErrNoAvailability = errors.New("requested slot outside availability, no alternates found")
	ErrSlotTaken      = errors.New("requested slot conflicts with existing appointment")
	ErrDoctorBusy     = errors.New("doctor is currently being booked, please retry")
)

// SuggestedSlot is the containment-only alternative offered when the
// requested interval falls outside every availability window. It is not
// re-checked against existing appointments.
type SuggestedSlot struct {
	Start    string
	End      string
	Timezone string
}

// SuggestionError rejects a booking while carrying an alternative slot.
type SuggestionError struct {
	Suggested SuggestedSlot
}

func (e *SuggestionError) Error() string {
	return "requested slot unavailable, alternative slot suggested"
}
