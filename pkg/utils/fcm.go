package utils

import (
	"context"
	"strings"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/rs/zerolog"
)

// DoctorNotifier pushes "new patient waiting" messages to the assigned doctor's FCM topic.
// A nil *DoctorNotifier sends nothing.
type DoctorNotifier struct {
	client *messaging.Client
	log    zerolog.Logger
}

// InitFCM creates the messaging client from an initialised Firebase app.
func InitFCM(ctx context.Context, app *firebase.App, log zerolog.Logger) (*DoctorNotifier, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("firebase cloud messaging ready")
	return &DoctorNotifier{client: client, log: log}, nil
}

// NotifyNewVisit sends one topic message for a freshly registered visit.
func (n *DoctorNotifier) NotifyNewVisit(ctx context.Context, doctor, opdID, patientName string) error {
	if n == nil || n.client == nil {
		return nil
	}

	message := &messaging.Message{
		Topic: DoctorTopic(doctor),
		Notification: &messaging.Notification{
			Title: "New OPD registration",
			Body:  patientName + " (" + opdID + ") is waiting",
		},
		Data: map[string]string{
			"opd_id": opdID,
			"doctor": doctor,
		},
	}

	if _, err := n.client.Send(ctx, message); err != nil {
		n.log.Error().Err(err).Str("opd_id", opdID).Msg("error sending doctor notification")
		return err
	}

	n.log.Debug().Str("topic", message.Topic).Msg("doctor notification sent")
	return nil
}

// DoctorTopic turns a doctor's display name into an FCM topic name,
// e.g. "Dr. Nilutpal Borah" -> "doctor-dr-nilutpal-borah".
func DoctorTopic(name string) string {
	var b strings.Builder
	b.WriteString("doctor-")
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > len("doctor-") {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
