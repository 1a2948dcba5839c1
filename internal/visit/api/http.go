// Package api provides the HTTP surface of the visit queue engine.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rssabbirdev/smart-clinic/internal/identity"
	"github.com/rssabbirdev/smart-clinic/internal/shared/auth"
	"github.com/rssabbirdev/smart-clinic/internal/shared/clock"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/events"
	"github.com/rssabbirdev/smart-clinic/internal/shared/metrics"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
	"github.com/rssabbirdev/smart-clinic/internal/visit/domain"
)

// averageWaitMinutes is the advisory figure shown on the staff
// dashboard. A real rolling average never existed upstream of this.
const averageWaitMinutes = 15

// historyLimit caps the visit history listing.
const historyLimit = 10

// Handler provides HTTP handlers for the visit queue
type Handler struct {
	repo       domain.Repository
	resolver   *identity.Resolver
	bus        events.Publisher
	clk        clock.Clock
	staleAfter time.Duration
}

// NewHandler creates a new visit handler. bus may be nil when the audit
// stream is not deployed.
func NewHandler(repo domain.Repository, resolver *identity.Resolver, bus events.Publisher, clk clock.Clock, staleAfter time.Duration) *Handler {
	if staleAfter <= 0 {
		staleAfter = domain.DefaultStaleAfter
	}
	return &Handler{repo: repo, resolver: resolver, bus: bus, clk: clk, staleAfter: staleAfter}
}

// RegisterPublic registers the patient-facing routes on r. Public and
// staff routes share the /queue subtree with different methods, so they
// are registered on the caller's router instead of mounted subrouters.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/check-in", h.CheckIn)
	r.Get("/check-in", h.CheckInStatus)
	r.Get("/queue/position", h.QueuePosition)
	r.Post("/queue/emergency", h.MarkEmergency)
}

// RegisterStaff registers the nurse/admin routes on r.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Get("/queue", h.Queue)
	r.Patch("/queue", h.QueueAction)
	r.Get("/queue/emergency", h.Emergencies)
	r.Get("/visits/history", h.History)
	r.Patch("/visits/{visitID}", h.UpdateVisit)
}

// --- Request types ---

type CheckInRequest struct {
	Symptoms      []string `json:"symptoms"`
	Severity      string   `json:"severity"`
	EmergencyFlag bool     `json:"emergencyFlag"`

	// Direct-submission identity, used when no session is present.
	Name      string `json:"name,omitempty"`
	StudentID string `json:"studentId,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
	Class     string `json:"class,omitempty"`
}

type QueueActionRequest struct {
	VisitID  types.ID      `json:"visitId"`
	Action   domain.Action `json:"action"`
	Notes    string        `json:"notes,omitempty"`
	Priority string        `json:"priority,omitempty"`
}

type MarkEmergencyRequest struct {
	StudentID string `json:"studentId"`
}

type UpdateVisitRequest struct {
	Notes    *string `json:"notes,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

// --- Handlers ---

// CheckIn admits a patient into the queue
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	if len(req.Symptoms) == 0 {
		writeError(w, errors.Validation("at least one symptom is required", map[string]any{"field": "symptoms"}))
		return
	}
	if req.Severity == "" {
		writeError(w, errors.Validation("severity level is required", map[string]any{"field": "severity"}))
		return
	}

	who := h.resolver.Resolve(r.Context(), r, identity.Direct{
		Name:      req.Name,
		StudentID: req.StudentID,
		Mobile:    req.Mobile,
		Class:     req.Class,
	})
	if who == nil {
		writeError(w, errors.Validation("no valid user information found", nil))
		return
	}

	now := h.clk.Now()

	existing, err := h.repo.FindActiveByStudent(r.Context(), who.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}

	decision := domain.AdmitCheckIn(existing, now, h.staleAfter)
	switch decision.Outcome {
	case domain.AdmitRejected:
		metrics.RecordCheckInRejected("already_active")
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":       false,
			"error":         "already_in_queue",
			"code":          "ALREADY_ACTIVE",
			"existingVisit": decision.Existing.Snapshot(),
		})
		return

	case domain.AdmitStaleOverride:
		// Close out the abandoned visit so it does not linger in the
		// waiting set forever. Losing this race to another closer is
		// fine; the insert below is still safe.
		if err := h.expireVisit(r.Context(), decision.Existing, now); err != nil {
			writeError(w, err)
			return
		}
	}

	waitingCount, err := h.repo.CountByStatus(r.Context(), domain.StatusWaiting)
	if err != nil {
		writeError(w, err)
		return
	}

	visit, err := domain.NewVisit(domain.CheckIn{
		UserID:        who.UserID,
		StudentID:     who.StudentID,
		Name:          who.Name,
		Mobile:        who.Mobile,
		Class:         who.Class,
		Symptoms:      req.Symptoms,
		Severity:      domain.Severity(req.Severity),
		EmergencyFlag: req.EmergencyFlag,
	}, waitingCount, now)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.repo.Insert(r.Context(), visit); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == "ALREADY_ACTIVE" {
			metrics.RecordCheckInRejected("already_active")
		}
		writeError(w, err)
		return
	}

	metrics.RecordCheckIn(string(visit.Priority))
	metrics.SetQueueWaiting(waitingCount + 1)
	h.emit(r.Context(), events.Event{
		Type:      events.TypeCheckedIn,
		VisitID:   visit.ID,
		StudentID: visit.StudentID,
		Data: map[string]any{
			"priority":      visit.Priority,
			"emergencyFlag": visit.EmergencyFlag,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"visitId":           visit.ID,
			"estimatedWaitTime": visit.EstimatedWaitTime,
			"queueStatus":       visit.QueueStatus,
			"priority":          visit.Priority,
			"symptoms":          visit.Symptoms,
			"emergencyFlag":     visit.EmergencyFlag,
		},
		"message": "Successfully checked in to the clinic queue",
	})
}

// CheckInStatus returns the caller's active visit with its recomputed
// queue position
func (h *Handler) CheckInStatus(w http.ResponseWriter, r *http.Request) {
	who := h.resolver.Resolve(r.Context(), r, identity.Direct{})
	if who == nil {
		writeError(w, errors.Unauthorized("no valid session found"))
		return
	}

	visit, err := h.repo.FindActiveByStudent(r.Context(), who.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if visit == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    nil,
			"message": "No active visit found",
		})
		return
	}

	// Position is only meaningful while waiting. Recomputed on every
	// query; never cached.
	position := 0
	if visit.QueueStatus == domain.StatusWaiting {
		waiting, err := h.repo.FindWaiting(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		pos, posErr := domain.Position(waiting, visit.ID)
		if posErr != nil {
			// The visit left the waiting set between the two reads.
			// Answer from a fresh read; a zero position against a
			// stale "waiting" status would mislead the poller.
			fresh, err := h.repo.FindByID(r.Context(), visit.ID)
			if err != nil {
				writeError(w, err)
				return
			}
			visit = fresh
		} else {
			position = pos
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"visitId":           visit.ID,
			"symptoms":          visit.Symptoms,
			"queueStatus":       visit.QueueStatus,
			"priority":          visit.Priority,
			"estimatedWaitTime": visit.EstimatedWaitTime,
			"queuePosition":     position,
			"createdAt":         visit.CreatedAt,
		},
	})
}

// Queue lists visits for staff with pagination and queue statistics
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{Limit: 50, Page: 1}

	if s := r.URL.Query().Get("status"); s != "" && s != "all" {
		status := domain.QueueStatus(s)
		filter.Status = &status
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		filter.Page = page
	}

	visits, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.repo.Stats(r.Context(), startOfDay(h.clk.Now()))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.SetQueueWaiting(stats.TotalWaiting)

	withPositions := make([]visitWithPosition, 0, len(visits))
	for i, v := range visits {
		withPositions = append(withPositions, visitWithPosition{
			Visit:         v,
			QueuePosition: (filter.Page-1)*filter.Limit + i + 1,
		})
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"visits": withPositions,
			"stats": map[string]any{
				"totalWaiting":    stats.TotalWaiting,
				"totalInProgress": stats.TotalInProgress,
				"totalCompleted":  stats.TotalCompleted,
				"emergencyCases":  stats.EmergencyCases,
				"totalToday":      stats.TotalToday,
				"averageWaitTime": averageWaitMinutes,
				"totalPages":      totalPages,
				"currentPage":     filter.Page,
				"totalCount":      total,
			},
		},
	})
}

// QueueAction applies a staff action through the state machine
func (h *Handler) QueueAction(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var req QueueActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}
	if req.VisitID.IsZero() || req.Action == "" {
		writeError(w, errors.Validation("visit ID and action are required", nil))
		return
	}
	if !domain.ValidAction(req.Action) {
		writeError(w, errors.Validation("invalid action", map[string]any{"action": string(req.Action)}))
		return
	}

	visit, err := h.repo.FindByID(r.Context(), req.VisitID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.clk.Now()

	switch req.Action {
	case domain.ActionStart:
		if err := visit.Start(user.ID, user.Name, req.Notes, now); err != nil {
			writeError(w, err)
			return
		}
		// The expected-status clause closes the race between two
		// nurses claiming the same patient: exactly one wins.
		if err := h.repo.UpdateStatus(r.Context(), visit, domain.StatusWaiting); err != nil {
			writeError(w, err)
			return
		}
		metrics.RecordStatusChange(string(domain.StatusWaiting), string(domain.StatusInProgress))
		h.emit(r.Context(), events.Event{
			Type: events.TypeStarted, VisitID: visit.ID, StudentID: visit.StudentID,
			ActorID: user.ID,
		})

	case domain.ActionComplete:
		from := visit.QueueStatus
		if err := visit.Complete(req.Notes, now); err != nil {
			writeError(w, err)
			return
		}
		if err := h.repo.UpdateStatus(r.Context(), visit, from); err != nil {
			writeError(w, err)
			return
		}
		metrics.RecordStatusChange(string(from), string(domain.StatusCompleted))
		h.emit(r.Context(), events.Event{
			Type: events.TypeCompleted, VisitID: visit.ID, StudentID: visit.StudentID,
			ActorID: user.ID,
		})

	case domain.ActionUpdateNotes:
		visit.SetNotes(req.Notes, now)
		if err := h.repo.Update(r.Context(), visit.ID, domain.AnnotationPatch{Notes: &req.Notes}, now); err != nil {
			writeError(w, err)
			return
		}
		h.emit(r.Context(), events.Event{
			Type: events.TypeNotesUpdated, VisitID: visit.ID, StudentID: visit.StudentID,
			ActorID: user.ID,
		})

	case domain.ActionUpdatePriority:
		old := visit.Priority
		if err := visit.SetPriority(domain.Priority(req.Priority), now); err != nil {
			writeError(w, err)
			return
		}
		if err := h.repo.Update(r.Context(), visit.ID, domain.AnnotationPatch{Priority: &visit.Priority}, now); err != nil {
			writeError(w, err)
			return
		}
		h.emit(r.Context(), events.Event{
			Type: events.TypePriorityChanged, VisitID: visit.ID, StudentID: visit.StudentID,
			ActorID: user.ID,
			Data:    map[string]any{"from": old, "to": visit.Priority},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"visit": visit},
		"message": fmt.Sprintf("Visit %s successful", req.Action),
	})
}

// QueuePosition returns the 1-based rank of a student's waiting visit
func (h *Handler) QueuePosition(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		writeError(w, errors.Validation("student ID is required", map[string]any{"field": "studentId"}))
		return
	}

	visit, err := h.repo.FindActiveByStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.clk.Now()

	if visit == nil || visit.QueueStatus != domain.StatusWaiting {
		writeError(w, errors.NotFound("active waiting visit", studentID))
		return
	}

	if visit.IsStale(now, h.staleAfter) {
		// A poll never mutates; the stale record is closed out at
		// re-check-in time.
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      false,
			"error":        "Visit expired",
			"canRecheckIn": true,
			"message":      "Your previous visit has expired. You can check in again.",
		})
		return
	}

	waiting, err := h.repo.FindWaiting(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	queueNumber, err := domain.Position(waiting, visit.ID)
	if err != nil {
		// Completed between the two reads; stale, re-fetch.
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"queueNumber":  queueNumber,
		"totalWaiting": len(waiting),
		"currentVisit": visit.Snapshot(),
	})
}

// Emergencies lists active emergency-flagged visits in dispatch order
func (h *Handler) Emergencies(w http.ResponseWriter, r *http.Request) {
	visits, err := h.repo.FindEmergencies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	withPositions := make([]visitWithPosition, 0, len(visits))
	for i, v := range visits {
		withPositions = append(withPositions, visitWithPosition{Visit: v, QueuePosition: i + 1})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    withPositions,
	})
}

// MarkEmergency escalates a student's waiting visit to the emergency tier
func (h *Handler) MarkEmergency(w http.ResponseWriter, r *http.Request) {
	var req MarkEmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}
	if req.StudentID == "" {
		writeError(w, errors.Validation("student ID is required", map[string]any{"field": "studentId"}))
		return
	}

	visit, err := h.repo.FindActiveByStudent(r.Context(), req.StudentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if visit == nil || visit.QueueStatus != domain.StatusWaiting {
		writeError(w, errors.NotFound("active waiting visit", req.StudentID))
		return
	}

	if err := visit.EscalateEmergency(h.clk.Now()); err != nil {
		writeError(w, err)
		return
	}

	// Conditional on still-waiting: a concurrent start wins and the
	// escalation reports no active waiting visit, as if it raced the
	// nurse to the patient.
	if err := h.repo.UpdateStatus(r.Context(), visit, domain.StatusWaiting); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == "INVALID_TRANSITION" {
			writeError(w, errors.NotFound("active waiting visit", req.StudentID))
			return
		}
		writeError(w, err)
		return
	}

	metrics.RecordEmergencyEscalation()
	h.emit(r.Context(), events.Event{
		Type: events.TypeMarkedEmergency, VisitID: visit.ID, StudentID: visit.StudentID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Case marked as emergency successfully",
		"visit": map[string]any{
			"id":            visit.ID,
			"name":          visit.Name,
			"studentId":     visit.StudentID,
			"priority":      visit.Priority,
			"emergencyFlag": visit.EmergencyFlag,
		},
	})
}

// History returns a student's completed visits, newest first
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		writeError(w, errors.Validation("student ID is required", map[string]any{"field": "studentId"}))
		return
	}

	visits, err := h.repo.FindCompletedByStudent(r.Context(), studentID, historyLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    visits,
	})
}

// UpdateVisit annotates or re-triages a single visit
func (h *Handler) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	visitID, err := types.ParseID(chi.URLParam(r, "visitID"))
	if err != nil {
		writeError(w, errors.Validation("invalid visit ID", nil))
		return
	}

	var req UpdateVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}
	if req.Notes == nil && req.Priority == nil {
		writeError(w, errors.Validation("nothing to update", nil))
		return
	}

	visit, err := h.repo.FindByID(r.Context(), visitID)
	if err != nil {
		writeError(w, err)
		return
	}

	user := auth.GetUser(r.Context())
	now := h.clk.Now()

	if req.Priority != nil {
		old := visit.Priority
		if err := visit.SetPriority(domain.Priority(*req.Priority), now); err != nil {
			writeError(w, err)
			return
		}
		h.emit(r.Context(), events.Event{
			Type: events.TypePriorityChanged, VisitID: visit.ID, StudentID: visit.StudentID,
			ActorID: user.ID,
			Data:    map[string]any{"from": old, "to": visit.Priority},
		})
	}
	if req.Notes != nil {
		visit.SetNotes(*req.Notes, now)
		h.emit(r.Context(), events.Event{
			Type: events.TypeNotesUpdated, VisitID: visit.ID, StudentID: visit.StudentID,
			ActorID: user.ID,
		})
	}

	patch := domain.AnnotationPatch{Notes: req.Notes}
	if req.Priority != nil {
		patch.Priority = &visit.Priority
	}
	if err := h.repo.Update(r.Context(), visit.ID, patch, now); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    visit,
	})
}

// expireVisit closes out a stale visit found by the duplicate check-in
// guard. A concurrent closer winning the race is not an error.
func (h *Handler) expireVisit(ctx context.Context, stale *domain.Visit, now time.Time) error {
	from := stale.QueueStatus
	if err := stale.Complete("expired without being seen", now); err != nil {
		return nil
	}
	if err := h.repo.UpdateStatus(ctx, stale, from); err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == "INVALID_TRANSITION" {
			return nil
		}
		return err
	}

	metrics.RecordStatusChange(string(from), string(domain.StatusCompleted))
	h.emit(ctx, events.Event{
		Type: events.TypeExpired, VisitID: stale.ID, StudentID: stale.StudentID,
	})
	return nil
}

// emit publishes to the audit stream when one is configured. Audit
// failures never fail the request.
func (h *Handler) emit(ctx context.Context, event events.Event) {
	if h.bus == nil {
		return
	}
	event.Timestamp = h.clk.Now()
	if err := h.bus.Publish(ctx, event); err != nil {
		fmt.Printf("warning: failed to publish %s event: %v\n", event.Type, err)
	}
}

type visitWithPosition struct {
	*domain.Visit
	QueuePosition int `json:"queuePosition"`
}

func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "internal server error"})
}
