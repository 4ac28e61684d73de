package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/metrics"
)

const (
	TemplateBookingPatient     = "booking_patient"
	TemplateBookingDoctor      = "booking_doctor"
	TemplateApproved           = "approved"
	TemplateRejected           = "rejected"
	TemplateCancelledPatient   = "cancelled_patient"
	TemplateCancelledDoctor    = "cancelled_doctor"
	TemplateRescheduledPatient = "rescheduled_patient"
	TemplateRescheduledDoctor  = "rescheduled_doctor"
	TemplateReminder           = "reminder"
)

// SMSNotifier turns lifecycle transitions into text messages.
// Delivery failures are logged and counted, never returned.
type SMSNotifier struct {
	gateway Gateway
	metrics *metrics.Metrics
	log     zerolog.Logger
}

var _ appointment.Notifier = (*SMSNotifier)(nil)

func NewSMSNotifier(gateway Gateway, m *metrics.Metrics, logger zerolog.Logger) *SMSNotifier {
	return &SMSNotifier{
		gateway: gateway,
		metrics: m,
		log:     logger.With().Str("component", "notify").Logger(),
	}
}

func (n *SMSNotifier) BookingRequested(ctx context.Context, appt appointment.Appointment, patient, doctor *appointment.User) {
	date := appt.DateKey()
	n.send(ctx, TemplateBookingPatient, appt, patient,
		fmt.Sprintf("Hello %s, Appointment booked successfully. Date: %s at %s. Status: Pending.", patient.DisplayName(), date, appt.Slot))
	n.send(ctx, TemplateBookingDoctor, appt, doctor,
		fmt.Sprintf("New appointment request received from %s for %s at %s.", patient.DisplayName(), date, appt.Slot))
}

// StatusChanged only messages approvals and rejections.
func (n *SMSNotifier) StatusChanged(ctx context.Context, appt appointment.Appointment, patient, doctor *appointment.User) {
	var template, verb string
	switch appt.Status {
	case appointment.StatusApproved:
		template, verb = TemplateApproved, "APPROVED"
	case appointment.StatusRejected:
		template, verb = TemplateRejected, "REJECTED"
	default:
		return
	}
	n.send(ctx, template, appt, patient,
		fmt.Sprintf("Hello %s, Your appointment on %s at %s has been %s by Dr. %s.",
			patient.DisplayName(), appt.DateKey(), appt.Slot, verb, doctor.DisplayName()))
}

func (n *SMSNotifier) Cancelled(ctx context.Context, appt appointment.Appointment, patient, doctor *appointment.User) {
	date := appt.DateKey()
	n.send(ctx, TemplateCancelledPatient, appt, patient,
		fmt.Sprintf("Your appointment with Dr. %s on %s at %s has been cancelled.", doctor.DisplayName(), date, appt.Slot))
	n.send(ctx, TemplateCancelledDoctor, appt, doctor,
		fmt.Sprintf("Appointment with %s on %s at %s has been cancelled.", patient.DisplayName(), date, appt.Slot))
}

func (n *SMSNotifier) Rescheduled(ctx context.Context, appt, previous appointment.Appointment, patient, doctor *appointment.User) {
	change := fmt.Sprintf("from %s %s to %s %s", previous.DateKey(), previous.Slot, appt.DateKey(), appt.Slot)
	n.send(ctx, TemplateRescheduledPatient, appt, patient,
		fmt.Sprintf("Your appointment with Dr. %s has been rescheduled %s.", doctor.DisplayName(), change))
	n.send(ctx, TemplateRescheduledDoctor, appt, doctor,
		fmt.Sprintf("Appointment with %s has been rescheduled %s.", patient.DisplayName(), change))
}

func (n *SMSNotifier) Reminder(ctx context.Context, appt appointment.Appointment, patient, doctor *appointment.User) {
	n.send(ctx, TemplateReminder, appt, patient,
		fmt.Sprintf("Reminder: Your appointment with Dr. %s is at %s on %s.", doctor.DisplayName(), appt.Slot, appt.DateKey()))
}

func (n *SMSNotifier) send(ctx context.Context, template string, appt appointment.Appointment, to *appointment.User, body string) {
	phone := to.PhoneNumber()
	if phone == "" {
		n.log.Warn().
			Str("template", template).
			Str("appointment_id", appt.ID.String()).
			Msg("recipient phone missing, skipping sms")
		n.metrics.ObserveSMS(template, "skipped")
		return
	}

	if err := n.gateway.Send(ctx, phone, body); err != nil {
		n.log.Error().Err(err).
			Str("template", template).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to send sms")
		n.metrics.ObserveSMS(template, "failed")
		return
	}
	n.metrics.ObserveSMS(template, "sent")
}
