package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
)

// FeedHandler serves the schedule as an iCalendar feed so tasks can be
// subscribed to from external calendar clients.
type FeedHandler struct {
	taskStore *store.TaskStore
	loc       *time.Location
	logger    *slog.Logger
}

func NewFeedHandler(ts *store.TaskStore, loc *time.Location, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{taskStore: ts, loc: loc, logger: logger}
}

// ICS writes the tasks in the requested range (default: 90 days from
// today) as an iCalendar document.
func (h *FeedHandler) ICS(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)
	start := now.AddDate(0, 0, -7)
	end := now.AddDate(0, 0, 90)

	if s := r.URL.Query().Get("start"); s != "" {
		t, err := parseFlexibleTime(s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
			return
		}
		start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := parseFlexibleTime(s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
			return
		}
		end = t
	}

	tasks, err := h.taskStore.ListByRange(start, end)
	if err != nil {
		h.logger.Error("feed list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build feed")
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//iljeong//schedule//KO")

	for _, t := range tasks {
		ve := cal.AddEvent("task-" + strconv.FormatInt(t.ID, 10) + "@iljeong")
		ve.SetDtStampTime(t.UpdatedAt)
		ve.SetCreatedTime(t.CreatedAt)
		ve.SetStartAt(t.StartTime)
		ve.SetEndAt(t.EndTime)
		ve.SetSummary(t.Title)
		if t.Description != "" {
			ve.SetDescription(t.Description)
		}
		if t.Status == model.StatusCompleted {
			ve.SetStatus(ical.ObjectStatusCompleted)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="iljeong.ics"`)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		h.logger.Error("write feed", "error", err)
	}
}
