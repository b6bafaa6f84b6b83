package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hbkim/iljeong/internal/auth"
	"github.com/hbkim/iljeong/internal/database"
	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/store"
	ws "github.com/hbkim/iljeong/internal/websocket"
)

func newTestTaskHandler(t *testing.T, detachDefault bool) (*TaskHandler, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p, err := store.NewProfileStore(db).Create("교감", "secret123", model.RoleAdmin)
	if err != nil {
		t.Fatalf("create admin profile: %v", err)
	}

	ts := store.NewTaskStore(db)
	hub := ws.NewHub(slog.Default())
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return NewTaskHandler(ts, hub, loc, detachDefault, slog.Default()), p.ID
}

func authedRequest(method, target string, body string, profileID int64) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{
		ProfileID: profileID,
		Role:      model.RoleAdmin,
	})
	return req.WithContext(ctx)
}

func createTasks(t *testing.T, h *TaskHandler, profileID int64, body string) createResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/tasks", body, profileID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp createResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func TestTaskCreateSingle(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)

	resp := createTasks(t, h, owner,
		`{"title":"장비 점검","start_time":"2026-04-07T09:00:00+09:00"}`)

	if len(resp.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(resp.Tasks))
	}
	if resp.Truncated {
		t.Error("single task should not truncate")
	}
	if resp.Tasks[0].RecurrenceID != nil {
		t.Error("single task should have nil recurrence id")
	}
}

func TestTaskCreateRecurring(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)

	resp := createTasks(t, h, owner,
		`{"title":"아침 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"daily","end_date":"2026-04-09"}`)

	if len(resp.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(resp.Tasks))
	}
	group := resp.Tasks[0].RecurrenceID
	if group == nil {
		t.Fatal("expected recurrence id")
	}
	for i, task := range resp.Tasks {
		if task.RecurrenceID == nil || *task.RecurrenceID != *group {
			t.Errorf("task %d not in the group", i)
		}
		if task.RecurrenceRule != "daily" {
			t.Errorf("task %d rule = %q", i, task.RecurrenceRule)
		}
	}
}

func TestTaskCreateRepeatingRequiresEndDate(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest("POST", "/api/tasks",
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly"}`, owner))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTaskCreateTruncatesLongExpansion(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)

	resp := createTasks(t, h, owner,
		`{"title":"매일 점호","start_time":"2026-01-01T08:00:00+09:00","recurrence_rule":"daily","end_date":"2028-12-31"}`)

	if !resp.Truncated {
		t.Error("expected truncated expansion")
	}
	if len(resp.Tasks) != 365 {
		t.Errorf("tasks = %d, want 365", len(resp.Tasks))
	}
}

func TestTaskListEchoesSeq(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	createTasks(t, h, owner,
		`{"title":"장비 점검","start_time":"2026-04-07T09:00:00+09:00"}`)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/tasks?start=2026-04-01&end=2026-04-30&seq=7", "", owner))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Seq != "7" {
		t.Errorf("seq = %q, want 7", resp.Seq)
	}
	if len(resp.Tasks) != 1 {
		t.Errorf("tasks = %d, want 1", len(resp.Tasks))
	}
}

func TestTaskListBareEndDateCoversWholeDay(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	createTasks(t, h, owner,
		`{"title":"늦은 일정","start_time":"2026-04-30T23:30:00+09:00"}`)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/tasks?start=2026-04-01&end=2026-04-30", "", owner))

	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tasks) != 1 {
		t.Errorf("tasks = %d, want 1 (end date should cover its whole day)", len(resp.Tasks))
	}
}

func TestTaskListRequiresRange(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/tasks", "", owner))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTaskUpdateKeepsGroupByDefault(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-21"}`)
	target := resp.Tasks[1]

	req := authedRequest("PUT", fmt.Sprintf("/api/tasks/%d", target.ID), `{"title":"수정된 회의"}`, owner)
	req.SetPathValue("id", fmt.Sprintf("%d", target.ID))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got model.Task
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Title != "수정된 회의" {
		t.Errorf("title = %q", got.Title)
	}
	if got.RecurrenceID == nil {
		t.Error("instance should stay in its group when detach defaults off")
	}
}

func TestTaskUpdateDetachFlag(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-21"}`)
	target := resp.Tasks[1]

	req := authedRequest("PUT", fmt.Sprintf("/api/tasks/%d", target.ID), `{"detach":true}`, owner)
	req.SetPathValue("id", fmt.Sprintf("%d", target.ID))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	var got model.Task
	json.NewDecoder(rec.Body).Decode(&got)
	if got.RecurrenceID != nil {
		t.Error("detached instance should leave its group")
	}
	if got.RecurrenceRule != "none" {
		t.Errorf("rule = %q, want none", got.RecurrenceRule)
	}
}

func TestTaskUpdateDetachDefaultOn(t *testing.T) {
	h, owner := newTestTaskHandler(t, true)
	resp := createTasks(t, h, owner,
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-21"}`)
	target := resp.Tasks[0]

	// No detach flag in the request; the configured default applies.
	req := authedRequest("PUT", fmt.Sprintf("/api/tasks/%d", target.ID), `{"title":"바뀐 제목"}`, owner)
	req.SetPathValue("id", fmt.Sprintf("%d", target.ID))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	var got model.Task
	json.NewDecoder(rec.Body).Decode(&got)
	if got.RecurrenceID != nil {
		t.Error("configured default should detach the edited instance")
	}
}

func TestTaskUpdateMovesEndWithStart(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"장비 점검","start_time":"2026-04-07T09:00:00+09:00"}`)
	target := resp.Tasks[0]

	req := authedRequest("PUT", fmt.Sprintf("/api/tasks/%d", target.ID),
		`{"start_time":"2026-04-08T10:00:00+09:00"}`, owner)
	req.SetPathValue("id", fmt.Sprintf("%d", target.ID))
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	var got model.Task
	json.NewDecoder(rec.Body).Decode(&got)
	if !got.EndTime.Equal(got.StartTime) {
		t.Errorf("end = %v, want to follow start %v", got.EndTime, got.StartTime)
	}
}

func TestTaskToggleComplete(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"장비 점검","start_time":"2026-04-07T09:00:00+09:00"}`)
	id := resp.Tasks[0].ID

	toggle := func() model.Task {
		req := authedRequest("POST", fmt.Sprintf("/api/tasks/%d/complete", id), "", owner)
		req.SetPathValue("id", fmt.Sprintf("%d", id))
		rec := httptest.NewRecorder()
		h.ToggleComplete(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var got model.Task
		json.NewDecoder(rec.Body).Decode(&got)
		return got
	}

	if got := toggle(); got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got := toggle(); got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending after second toggle", got.Status)
	}
}

func TestTaskUpdateGroupReplaces(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-21"}`)
	oldGroup := *resp.Tasks[0].RecurrenceID

	req := authedRequest("PUT", "/api/recurrences/"+oldGroup,
		`{"title":"격주 회의","start_time":"2026-04-07T14:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-14"}`, owner)
	req.SetPathValue("group_id", oldGroup)
	rec := httptest.NewRecorder()
	h.UpdateGroup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var replaced createResponse
	json.NewDecoder(rec.Body).Decode(&replaced)
	if len(replaced.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(replaced.Tasks))
	}
	if *replaced.Tasks[0].RecurrenceID == oldGroup {
		t.Error("replacement should carry a fresh group id")
	}

	// The old group is gone: listing the whole month shows only the
	// replacement instances.
	rec = httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/tasks?start=2026-04-01&end=2026-04-30", "", owner))
	var listed listResponse
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Tasks) != 2 {
		t.Errorf("tasks after replace = %d, want 2", len(listed.Tasks))
	}
}

func TestTaskUpdateGroupUnknown(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)

	req := authedRequest("PUT", "/api/recurrences/no-such-group",
		`{"title":"회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-14"}`, owner)
	req.SetPathValue("group_id", "no-such-group")
	rec := httptest.NewRecorder()
	h.UpdateGroup(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestTaskUpdateGroupRejectedEditKeepsGroup(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-21"}`)
	group := *resp.Tasks[0].RecurrenceID

	// end_date before start_time expands to nothing; the edit must be
	// rejected without touching the existing instances.
	req := authedRequest("PUT", "/api/recurrences/"+group,
		`{"title":"주간 회의","start_time":"2026-04-07T09:00:00+09:00","recurrence_rule":"weekly","end_date":"2026-04-01"}`, owner)
	req.SetPathValue("group_id", group)
	rec := httptest.NewRecorder()
	h.UpdateGroup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/tasks?start=2026-04-01&end=2026-04-30", "", owner))
	var listed listResponse
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Tasks) != 3 {
		t.Errorf("tasks after rejected edit = %d, want 3", len(listed.Tasks))
	}
	for i, task := range listed.Tasks {
		if task.RecurrenceID == nil || *task.RecurrenceID != group {
			t.Errorf("task %d lost its group id", i)
		}
	}
}

func TestTaskDeleteGroup(t *testing.T) {
	h, owner := newTestTaskHandler(t, false)
	resp := createTasks(t, h, owner,
		`{"title":"아침 점호","start_time":"2026-04-07T08:00:00+09:00","recurrence_rule":"daily","end_date":"2026-04-09"}`)
	group := *resp.Tasks[0].RecurrenceID

	req := authedRequest("DELETE", "/api/recurrences/"+group, "", owner)
	req.SetPathValue("group_id", group)
	rec := httptest.NewRecorder()
	h.DeleteGroup(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = httptest.NewRecorder()
	h.List(rec, authedRequest("GET", "/api/tasks?start=2026-04-01&end=2026-04-30", "", owner))
	var listed listResponse
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Tasks) != 0 {
		t.Errorf("tasks after group delete = %d, want 0", len(listed.Tasks))
	}
}
