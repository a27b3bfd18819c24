package notification

import (
	"strings"
	"text/template"
)

type mailTemplate struct {
	subject string
	body    *template.Template
}

var (
	scheduledMail = newMailTemplate("Appointment Confirmation",
		"{{if .PatientName}}Dear {{.PatientName}},\n\n{{end}}"+
			"Your appointment with Dr. {{.DoctorName}} has been scheduled for {{.Date}}.\n\n"+
			"Thank you for choosing our hospital.")

	rescheduledMail = newMailTemplate("Appointment Update",
		"{{if .PatientName}}Dear {{.PatientName}},\n\n{{end}}"+
			"Your appointment with Dr. {{.DoctorName}} has been rescheduled to {{.Date}}.\n\n"+
			"Please contact us if this new time does not work for you.")

	cancelledMail = newMailTemplate("Appointment Cancellation",
		"{{if .PatientName}}Dear {{.PatientName}},\n\n{{end}}"+
			"Your appointment with Dr. {{.DoctorName}} scheduled for {{.Date}} has been cancelled.\n\n"+
			"Please contact us if you need to reschedule.")

	reminderMail = newMailTemplate("Appointment Reminder",
		"{{if .PatientName}}Dear {{.PatientName}},\n\n{{end}}"+
			"This is a reminder that you have an appointment with Dr. {{.DoctorName}} tomorrow, {{.Date}}.\n\n"+
			"Please arrive 15 minutes early to complete any necessary paperwork.\n\n"+
			"If you need to reschedule, please contact us as soon as possible.")
)

func newMailTemplate(subject, body string) mailTemplate {
	return mailTemplate{
		subject: subject,
		body:    template.Must(template.New(subject).Parse(body)),
	}
}

func (t mailTemplate) render(n Notice) (string, error) {
	var b strings.Builder
	if err := t.body.Execute(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}
