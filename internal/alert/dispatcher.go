// Package alert fans one anomalous CareScore out to the patient and their
// accepted care circle as in-app notifications.
package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

// NotifyStore is the storage surface the dispatcher needs.
type NotifyStore interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	AcceptedCareTeam(ctx context.Context, patientID int64) ([]model.CareLink, error)
	CreateNotifications(ctx context.Context, notifs []model.Notification) error
}

// Dispatcher builds the notification set for a threshold-crossing score and
// persists it in a single store call.
type Dispatcher struct {
	store NotifyStore
}

func NewDispatcher(store NotifyStore) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch notifies the patient and every accepted care-circle member about
// a score and returns the notified user IDs. A patient row that no longer
// exists is logged and skipped, not an error; the score itself is already
// persisted by the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, patientID int64, score *model.Score) ([]int64, error) {
	patient, err := d.store.GetUser(ctx, patientID)
	if err != nil {
		return nil, eris.Wrapf(err, "alert: load patient %d", patientID)
	}
	if patient == nil {
		zap.L().Warn("alert skipped, patient not found", zap.Int64("patient_id", patientID))
		return nil, nil
	}

	priority, label := grade(score.Aggregate)

	notifs := []model.Notification{{
		UserID:         patientID,
		Type:           model.NotifyAnomaly,
		Title:          "Health Alert: " + label,
		Message:        patientMessage(score),
		RelatedScoreID: score.ID,
		Priority:       priority,
	}}
	notified := []int64{patientID}

	links, err := d.store.AcceptedCareTeam(ctx, patientID)
	if err != nil {
		// The patient still gets their alert when the circle can't be read.
		zap.L().Warn("care team lookup failed",
			zap.Int64("patient_id", patientID),
			zap.Error(err))
		links = nil
	}
	for _, link := range links {
		n, ok := memberNotification(link, patient.Name, score, priority, label)
		if !ok {
			continue
		}
		n.RelatedUserID = &patientID
		notifs = append(notifs, n)
		notified = append(notified, link.MemberID)
	}

	if err := d.store.CreateNotifications(ctx, notifs); err != nil {
		return nil, eris.Wrapf(err, "alert: persist notifications for patient %d", patientID)
	}

	zap.L().Debug("notifications created",
		zap.Int64("patient_id", patientID),
		zap.Float64("aggregate", score.Aggregate),
		zap.Int("count", len(notifs)))
	return notified, nil
}

// grade maps the aggregate to a notification priority and a severity label.
func grade(aggregate float64) (string, string) {
	switch {
	case aggregate >= 70:
		return model.PriorityCritical, "High Risk"
	case aggregate >= 50:
		return model.PriorityHigh, "Moderate Concern"
	default:
		return model.PriorityNormal, "Mild Concern"
	}
}

// patientMessage renders the patient-facing alert body. Suggested next steps
// ride along from moderate status upward.
func patientMessage(score *model.Score) string {
	msg := fmt.Sprintf("Your CareScore has reached %.1f. %s", score.Aggregate, score.Explanation)
	if score.Status != model.StatusModerate && score.Status != model.StatusHigh {
		return msg
	}
	if sugg := Suggestions(score); len(sugg) > 0 {
		msg += " Suggested next steps: " + strings.Join(sugg, "; ") + "."
	}
	return msg
}

func memberNotification(link model.CareLink, patientName string, score *model.Score, priority, label string) (model.Notification, bool) {
	switch link.Role {
	case model.RoleDoctor:
		return model.Notification{
			UserID:         link.MemberID,
			Type:           model.NotifyPatientAnomaly,
			Title:          "Patient Alert: " + patientName,
			Message:        fmt.Sprintf("CareScore: %.1f (%s). %s", score.Aggregate, label, score.Explanation),
			RelatedScoreID: score.ID,
			Priority:       priority,
		}, true
	case model.RoleCaretaker:
		return model.Notification{
			UserID:         link.MemberID,
			Type:           model.NotifyPatientAlert,
			Title:          "Alert: " + patientName,
			Message:        fmt.Sprintf("%s's health status requires attention. (%s)", patientName, label),
			RelatedScoreID: score.ID,
			Priority:       priority,
		}, true
	}
	return model.Notification{}, false
}
