package registry

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
)

// Handler provides HTTP handlers for the student directory
type Handler struct {
	dir Directory
}

func NewHandler(dir Directory) *Handler {
	return &Handler{dir: dir}
}

// Routes registers the directory routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/search", h.Search)
	return r
}

// Search looks up students by exact ID or by a name/ID fragment
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if studentID := r.URL.Query().Get("studentId"); studentID != "" {
		student, err := h.dir.FindByStudentID(r.Context(), studentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": student})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, errors.Validation("studentId or q is required", nil))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	students, err := h.dir.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": students})
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
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "internal server error"})
}
