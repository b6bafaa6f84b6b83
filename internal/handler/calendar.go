package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hbkim/iljeong/internal/calendar"
	"github.com/hbkim/iljeong/internal/holiday"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
)

// CalendarHandler serves the pre-bucketed dashboard grid: the visible
// range for the requested render mode, one entry per day with its
// rendering class and that day's tasks.
type CalendarHandler struct {
	taskStore *store.TaskStore
	loc       *time.Location
	logger    *slog.Logger
}

func NewCalendarHandler(ts *store.TaskStore, loc *time.Location, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{taskStore: ts, loc: loc, logger: logger}
}

type calendarDay struct {
	Date  string            `json:"date"`
	Class calendar.DayClass `json:"class"`
	Tasks []model.Task      `json:"tasks"`
}

type calendarResponse struct {
	Mode  string        `json:"mode"`
	Start string        `json:"start"`
	End   string        `json:"end"`
	Days  []calendarDay `json:"days"`
}

// Grid returns the day grid for ?mode=month|five-week anchored at
// ?anchor=YYYY-MM-DD (default today). ?selected marks one day as
// selected in the returned classes; it defaults to the anchor.
func (h *CalendarHandler) Grid(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)

	anchor := now
	if s := r.URL.Query().Get("anchor"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "anchor must be YYYY-MM-DD format")
			return
		}
		anchor = t
	}

	selected := anchor
	if s := r.URL.Query().Get("selected"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "selected must be YYYY-MM-DD format")
			return
		}
		selected = t
	}

	mode := calendar.GridMode(r.URL.Query().Get("mode"))
	switch mode {
	case "":
		mode = calendar.GridMonth
	case calendar.GridMonth, calendar.GridFiveWeek:
	default:
		writeError(w, http.StatusBadRequest, "mode must be month or five-week")
		return
	}

	start, end := calendar.RangeFor(mode, anchor)

	tasks, err := h.taskStore.ListByRange(start, end)
	if err != nil {
		h.logger.Error("list tasks for grid", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}
	buckets := calendar.Bucketize(tasks, start, end, h.loc)

	// The five-week grid can reach into the neighboring year (a January
	// anchor starts in December), so merge both years' holiday tables.
	holidays := holiday.ForYear(start.Year())
	if end.Year() != start.Year() {
		for d := range holiday.ForYear(end.Year()) {
			holidays[d] = struct{}{}
		}
	}

	var days []calendarDay
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		dayTasks := buckets[key]
		if dayTasks == nil {
			dayTasks = []model.Task{}
		}
		days = append(days, calendarDay{
			Date:  key,
			Class: calendar.Classify(day, selected, now, holidays),
			Tasks: dayTasks,
		})
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Mode:  string(mode),
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
		Days:  days,
	})
}
