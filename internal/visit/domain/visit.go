// Package domain holds the visit entity and the queue engine rules:
// priority classification, queue ordering, lifecycle transitions and
// the duplicate check-in guard.
package domain

import (
	"strings"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// QueueStatus defines where a visit sits in its lifecycle
type QueueStatus string

const (
	StatusWaiting    QueueStatus = "waiting"
	StatusInProgress QueueStatus = "in-progress"
	StatusCompleted  QueueStatus = "completed"
)

// Priority defines the triage tier of a visit
type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

// Tier returns the numeric rank of a priority, higher is more urgent.
func (p Priority) Tier() int {
	switch p {
	case PriorityEmergency:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the four known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

// Action identifies a staff queue action.
type Action string

const (
	ActionStart          Action = "start"
	ActionComplete       Action = "complete"
	ActionUpdateNotes    Action = "update_notes"
	ActionUpdatePriority Action = "update_priority"
)

// transitionFrom maps each action to the statuses it is legal from.
var transitionFrom = map[Action][]QueueStatus{
	ActionStart:          {StatusWaiting},
	ActionComplete:       {StatusWaiting, StatusInProgress},
	ActionUpdateNotes:    {StatusWaiting, StatusInProgress, StatusCompleted},
	ActionUpdatePriority: {StatusWaiting, StatusInProgress, StatusCompleted},
}

// ValidAction reports whether the action is known.
func ValidAction(action Action) bool {
	_, ok := transitionFrom[action]
	return ok
}

// CanApply reports whether the action is legal from the given status.
func CanApply(action Action, from QueueStatus) bool {
	for _, s := range transitionFrom[action] {
		if s == from {
			return true
		}
	}
	return false
}

// Visit is one check-in-to-resolution episode for a patient.
type Visit struct {
	ID        types.ID `json:"id"`
	UserID    types.ID `json:"userId,omitempty"`
	StudentID string   `json:"studentId"`
	Name      string   `json:"name"`
	Mobile    string   `json:"mobile,omitempty"`
	Class     string   `json:"class,omitempty"`

	Symptoms []string `json:"symptoms"`

	QueueStatus       QueueStatus `json:"queueStatus"`
	EmergencyFlag     bool        `json:"emergencyFlag"`
	Priority          Priority    `json:"priority"`
	EstimatedWaitTime int         `json:"estimatedWaitTime"`

	Notes             string   `json:"notes,omitempty"`
	AssignedNurse     types.ID `json:"assignedNurse,omitempty"`
	AssignedNurseName string   `json:"assignedNurseName,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CheckIn carries the validated inputs of a new visit.
type CheckIn struct {
	UserID        types.ID
	StudentID     string
	Name          string
	Mobile        string
	Class         string
	Symptoms      []string
	Severity      Severity
	EmergencyFlag bool
}

// NewVisit creates a waiting visit from a check-in, deriving priority
// and estimated wait from the severity and the current waiting count.
func NewVisit(in CheckIn, waitingCount int, now time.Time) (*Visit, error) {
	symptoms := make([]string, 0, len(in.Symptoms))
	for _, s := range in.Symptoms {
		if t := strings.TrimSpace(s); t != "" {
			symptoms = append(symptoms, t)
		}
	}
	if len(symptoms) == 0 {
		return nil, errors.Validation("at least one symptom is required", map[string]any{"field": "symptoms"})
	}
	if in.Severity == "" {
		return nil, errors.Validation("severity level is required", map[string]any{"field": "severity"})
	}
	if in.StudentID == "" || in.Name == "" {
		return nil, errors.Validation("no valid user information found", nil)
	}

	priority, wait := Classify(in.Severity, in.EmergencyFlag, waitingCount)

	return &Visit{
		ID:                types.NewID(),
		UserID:            in.UserID,
		StudentID:         in.StudentID,
		Name:              in.Name,
		Mobile:            in.Mobile,
		Class:             in.Class,
		Symptoms:          symptoms,
		QueueStatus:       StatusWaiting,
		EmergencyFlag:     in.EmergencyFlag,
		Priority:          priority,
		EstimatedWaitTime: wait,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsActive reports whether the visit is still in the queue.
func (v *Visit) IsActive() bool {
	return v.QueueStatus == StatusWaiting || v.QueueStatus == StatusInProgress
}

// IsStale reports whether an active visit is old enough to be treated
// as abandoned.
func (v *Visit) IsStale(now time.Time, staleAfter time.Duration) bool {
	return v.IsActive() && now.Sub(v.CreatedAt) > staleAfter
}

// Start claims the visit for a nurse. Legal only from waiting; the
// persistence layer enforces the same precondition atomically so racing
// claims resolve to exactly one winner.
func (v *Visit) Start(actorID types.ID, actorName, notes string, now time.Time) error {
	if !CanApply(ActionStart, v.QueueStatus) {
		return errors.InvalidTransition("visit is not waiting")
	}
	if actorID.IsZero() {
		return errors.Validation("acting nurse is required", nil)
	}

	v.QueueStatus = StatusInProgress
	v.AssignedNurse = actorID
	v.AssignedNurseName = actorName
	if notes != "" {
		v.Notes = notes
	}
	v.UpdatedAt = now
	return nil
}

// Complete closes the visit. Legal from waiting (no-shows, trivial
// dispositions) or in-progress. AssignedNurse is left as-is.
func (v *Visit) Complete(notes string, now time.Time) error {
	if !CanApply(ActionComplete, v.QueueStatus) {
		return errors.InvalidTransition("visit is already completed")
	}

	v.QueueStatus = StatusCompleted
	if notes != "" {
		v.Notes = notes
	}
	v.UpdatedAt = now
	return nil
}

// SetNotes replaces the staff notes. Pure annotation, legal in any state.
func (v *Visit) SetNotes(notes string, now time.Time) {
	v.Notes = notes
	v.UpdatedAt = now
}

// SetPriority overwrites the priority tier for manual re-triage. Does
// not touch the emergency flag or the status.
func (v *Visit) SetPriority(p Priority, now time.Time) error {
	if !p.Valid() {
		return errors.Validation("unknown priority", map[string]any{"priority": string(p)})
	}
	v.Priority = p
	v.UpdatedAt = now
	return nil
}

// EscalateEmergency raises a waiting visit to the emergency tier and
// sets the emergency flag.
func (v *Visit) EscalateEmergency(now time.Time) error {
	if v.QueueStatus != StatusWaiting {
		return errors.NotFound("active waiting visit", v.StudentID)
	}
	v.EmergencyFlag = true
	v.Priority = PriorityEmergency
	v.UpdatedAt = now
	return nil
}

// Snapshot returns the fields surfaced to a caller who is told they
// are already in the queue.
func (v *Visit) Snapshot() map[string]any {
	return map[string]any{
		"id":            v.ID,
		"name":          v.Name,
		"studentId":     v.StudentID,
		"priority":      v.Priority,
		"symptoms":      v.Symptoms,
		"emergencyFlag": v.EmergencyFlag,
		"createdAt":     v.CreatedAt,
	}
}
