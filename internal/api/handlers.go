package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/careslot/booking/internal/booking"
)

func requestAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}

		if req.DoctorID == "" || req.Patient == nil || req.Start == "" || req.End == "" {
			writeMessage(w, http.StatusBadRequest, "doctorId, patient, start and end are required")
			return
		}
		if req.Patient.Name == "" || req.Patient.Email == "" {
			writeMessage(w, http.StatusBadRequest, "patient name and email are required")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "doctorId must be a valid UUID")
			return
		}

		conf, err := svc.RequestAppointment(r.Context(), booking.Request{
			DoctorID:     doctorID,
			PatientName:  req.Patient.Name,
			PatientEmail: req.Patient.Email,
			PatientPhone: req.Patient.Phone,
			Start:        req.Start,
			End:          req.End,
			Timezone:     req.Timezone,
		})
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{Appointment: AppointmentResponse{
			ID:       conf.AppointmentID.String(),
			Doctor:   conf.DoctorID.String(),
			Patient:  conf.PatientID.String(),
			Start:    conf.Start,
			End:      conf.End,
			Timezone: conf.Timezone,
		}})
	}
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var suggestion *booking.SuggestionError

	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeMessage(w, http.StatusNotFound, "Doctor not found")
	case errors.Is(err, booking.ErrMalformedTime),
		errors.Is(err, booking.ErrUnknownTimezone),
		errors.Is(err, booking.ErrInvalidInterval):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &suggestion):
		writeJSON(w, http.StatusConflict, RejectionResponse{
			Message: "Requested slot unavailable. Here is a suggested slot.",
			Suggested: &SuggestedSlotResponse{
				Start:    suggestion.Suggested.Start,
				End:      suggestion.Suggested.End,
				Timezone: suggestion.Suggested.Timezone,
			},
		})
	case errors.Is(err, booking.ErrNoAvailability):
		writeMessage(w, http.StatusConflict, "Requested slot outside availability. No alternates found.")
	case errors.Is(err, booking.ErrSlotTaken):
		writeMessage(w, http.StatusConflict, "Requested slot conflicts with existing appointment")
	case errors.Is(err, booking.ErrDoctorBusy):
		writeMessage(w, http.StatusConflict, "Doctor is currently being booked, please retry shortly")
	default:
		// Full context stays server-side; the caller gets a generic failure.
		log.Printf("booking request failed request_id=%s: %v", GetRequestID(r.Context()), err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
