// Package notification sends best-effort appointment emails. Every send runs
// on its own goroutine; failures are logged and never reach the caller.
package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notice is the appointment data a mail template renders.
type Notice struct {
	AppointmentID string
	PatientName   string
	PatientEmail  string
	DoctorName    string
	// Date is the appointment day, already formatted.
	Date string
}

type Dispatcher struct {
	sender  Sender
	from    string
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, from string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		from:    from,
		timeout: timeout,
		logger:  logger,
	}
}

func (d *Dispatcher) AppointmentScheduled(n Notice) {
	d.sendTemplate(scheduledMail, n)
}

func (d *Dispatcher) AppointmentRescheduled(n Notice) {
	d.sendTemplate(rescheduledMail, n)
}

func (d *Dispatcher) AppointmentCancelled(n Notice) {
	d.sendTemplate(cancelledMail, n)
}

func (d *Dispatcher) AppointmentReminder(n Notice) {
	d.sendTemplate(reminderMail, n)
}

func (d *Dispatcher) sendTemplate(t mailTemplate, n Notice) {
	if n.PatientEmail == "" {
		d.logger.Warn("Skipping notification without recipient",
			zap.String("subject", t.subject),
			zap.String("appointment_id", n.AppointmentID),
		)
		return
	}

	body, err := t.render(n)
	if err != nil {
		d.logger.Error("Failed to render notification",
			zap.String("subject", t.subject),
			zap.Error(err),
		)
		return
	}
	d.Send(n.PatientEmail, t.subject, body)
}

// Send delivers one email asynchronously.
func (d *Dispatcher) Send(to, subject, body string) {
	msg := Message{From: d.from, To: to, Subject: subject, Body: body}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("panic while sending notification",
					zap.Any("error", r),
					zap.String("to", to),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.Error("Failed to send email notification",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err),
			)
			return
		}
		d.logger.Info("Email notification sent",
			zap.String("to", to),
			zap.String("subject", subject),
		)
	}()
}

// Wait blocks until in-flight sends finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
