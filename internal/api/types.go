package api

// Wire format follows the automation platform's existing consumers: camelCase
// keys, rejections as {message, suggested?}.

type PatientPayload struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type BookingRequest struct {
	DoctorID string          `json:"doctorId"`
	Patient  *PatientPayload `json:"patient"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Timezone string          `json:"timezone,omitempty"`
}

type AppointmentResponse struct {
	ID       string `json:"id"`
	Doctor   string `json:"doctor"`
	Patient  string `json:"patient"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

type BookingResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
}

type SuggestedSlotResponse struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

type RejectionResponse struct {
	Message   string                 `json:"message"`
	Suggested *SuggestedSlotResponse `json:"suggested,omitempty"`
}
