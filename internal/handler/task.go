package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hbkim/iljeong/internal/auth"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/recurrence"
	"github.com/hbkim/iljeong/internal/store"
	ws "github.com/hbkim/iljeong/internal/websocket"
)

type TaskHandler struct {
	taskStore *store.TaskStore
	hub       *ws.Hub
	loc       *time.Location
	// detachDefault is applied when an update request omits the detach
	// flag for an instance belonging to a recurrence group.
	detachDefault bool
	logger        *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, hub *ws.Hub, loc *time.Location, detachDefault bool, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskStore:     ts,
		hub:           hub,
		loc:           loc,
		detachDefault: detachDefault,
		logger:        logger,
	}
}

type listResponse struct {
	// Seq echoes the client-supplied seq query parameter so callers can
	// discard responses that resolve out of order after rapid range
	// changes.
	Seq   string       `json:"seq,omitempty"`
	Tasks []model.Task `json:"tasks"`
}

// List returns tasks whose start time falls within [start, end],
// ascending by start time.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, err := parseFlexibleTime(startStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}
	// A bare end date means the whole day.
	if len(endStr) == len("2006-01-02") {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	tasks, err := h.taskStore.ListByRange(start, end)
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	writeJSON(w, http.StatusOK, listResponse{
		Seq:   r.URL.Query().Get("seq"),
		Tasks: tasks,
	})
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	task, err := h.taskStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

type createRequest struct {
	Title          string `json:"title"`
	StartTime      string `json:"start_time"`
	Description    string `json:"description"`
	RecurrenceRule string `json:"recurrence_rule"`
	// EndDate (YYYY-MM-DD) bounds the expansion; required for repeating
	// rules, ignored for none.
	EndDate string `json:"end_date"`
}

type createResponse struct {
	Tasks []model.Task `json:"tasks"`
	// Truncated is set when the expansion hit the instance cap before
	// reaching end_date.
	Truncated bool `json:"truncated"`
}

// Create inserts a single task or a whole recurrence group.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	spec, ok := h.parseSpec(w, r, req)
	if !ok {
		return
	}

	instances, truncated := recurrence.Expand(spec)
	if len(instances) == 0 {
		writeError(w, http.StatusBadRequest, "end_date is before start_time")
		return
	}

	tasks, err := h.taskStore.InsertInstances(instances)
	if err != nil {
		h.logger.Error("create tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create tasks")
		return
	}

	h.hub.Broadcast(ws.NewMessage("task", "created", tasks[0].ID, map[string]any{
		"count": len(tasks),
	}))

	writeJSON(w, http.StatusCreated, createResponse{Tasks: tasks, Truncated: truncated})
}

func (h *TaskHandler) parseSpec(w http.ResponseWriter, r *http.Request, req createRequest) (recurrence.Spec, bool) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return recurrence.Spec{}, false
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return recurrence.Spec{}, false
	}

	rule, err := recurrence.ParseRule(req.RecurrenceRule)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return recurrence.Spec{}, false
	}

	spec := recurrence.Spec{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     auth.ProfileID(r.Context()),
		Start:       start.In(h.loc),
		Rule:        rule,
	}

	if rule != recurrence.None {
		if req.EndDate == "" {
			writeError(w, http.StatusBadRequest, "end_date is required for repeating tasks")
			return recurrence.Spec{}, false
		}
		endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD format")
			return recurrence.Spec{}, false
		}
		spec.EndDate = endDate
	}

	return spec, true
}

type updateRequest struct {
	Title       *string `json:"title"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
	// Detach removes this instance from its recurrence group. Omitted
	// means the configured default.
	Detach *bool `json:"detach"`
}

// Update applies a partial edit to one task instance.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.taskStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	fields := store.UpdateFields{
		Description: req.Description,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		fields.Title = &title
	}
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
			return
		}
		fields.StartTime = &t
		// Point-in-time task: end time follows start unless set explicitly.
		if req.EndTime == nil {
			fields.EndTime = &t
		}
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
			return
		}
		fields.EndTime = &t
	}
	if req.Status != nil {
		if *req.Status != model.StatusPending && *req.Status != model.StatusCompleted {
			writeError(w, http.StatusBadRequest, "status must be pending or completed")
			return
		}
		fields.Status = req.Status
	}

	if existing.RecurrenceID != nil {
		detach := h.detachDefault
		if req.Detach != nil {
			detach = *req.Detach
		}
		fields.Detach = detach
	}

	task, err := h.taskStore.Update(id, fields)
	if err != nil {
		h.logger.Error("update task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.hub.Broadcast(ws.NewMessage("task", "updated", id, nil))
	writeJSON(w, http.StatusOK, task)
}

// ToggleComplete flips a task between pending and completed.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.taskStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	status := model.StatusCompleted
	if existing.Status == model.StatusCompleted {
		status = model.StatusPending
	}

	task, err := h.taskStore.Update(id, store.UpdateFields{Status: &status})
	if err != nil {
		h.logger.Error("toggle task status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.hub.Broadcast(ws.NewMessage("task", "updated", id, nil))
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.taskStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if err := h.taskStore.Delete(id); err != nil {
		h.logger.Error("delete task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.hub.Broadcast(ws.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateGroup replaces a whole recurrence group: every instance with the
// group id is deleted and a fresh expansion (new group id) is inserted.
// This is deliberately create-replace, not an in-place patch; if the
// insert fails after the delete, the group is gone and the error is
// reported to the caller.
func (h *TaskHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("group_id")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	spec, ok := h.parseSpec(w, r, req)
	if !ok {
		return
	}

	// Expand before deleting anything: a request that produces no
	// instances must leave the existing group untouched.
	instances, truncated := recurrence.Expand(spec)
	if len(instances) == 0 {
		writeError(w, http.StatusBadRequest, "end_date is before start_time")
		return
	}

	removed, err := h.taskStore.DeleteByRecurrenceID(groupID)
	if err != nil {
		h.logger.Error("delete recurrence group", "error", err, "group_id", groupID)
		writeError(w, http.StatusInternalServerError, "failed to replace recurrence group")
		return
	}
	if removed == 0 {
		writeError(w, http.StatusNotFound, "recurrence group not found")
		return
	}

	tasks, err := h.taskStore.InsertInstances(instances)
	if err != nil {
		h.logger.Error("reinsert recurrence group", "error", err, "group_id", groupID)
		writeError(w, http.StatusInternalServerError, "failed to recreate recurrence group")
		return
	}

	h.hub.Broadcast(ws.NewMessage("task", "group_replaced", tasks[0].ID, map[string]any{
		"old_group_id": groupID,
		"count":        len(tasks),
	}))

	writeJSON(w, http.StatusOK, createResponse{Tasks: tasks, Truncated: truncated})
}

// DeleteGroup removes every instance sharing the group id.
func (h *TaskHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("group_id")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	removed, err := h.taskStore.DeleteByRecurrenceID(groupID)
	if err != nil {
		h.logger.Error("delete recurrence group", "error", err, "group_id", groupID)
		writeError(w, http.StatusInternalServerError, "failed to delete recurrence group")
		return
	}
	if removed == 0 {
		writeError(w, http.StatusNotFound, "recurrence group not found")
		return
	}

	h.hub.Broadcast(ws.NewMessage("task", "group_deleted", 0, map[string]any{
		"group_id": groupID,
		"count":    removed,
	}))

	w.WriteHeader(http.StatusNoContent)
}
