package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floguru/gurucore/internal/gateway"
	"github.com/floguru/gurucore/internal/logger"
	"github.com/floguru/gurucore/internal/scheduler"
)

type fakeScheduler struct {
	jobs        []scheduler.JobInfo
	scheduled   map[string]scheduler.Trigger
	unscheduled []string
	scheduleErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]scheduler.Trigger)}
}

func (f *fakeScheduler) Jobs() []scheduler.JobInfo { return f.jobs }

func (f *fakeScheduler) ScheduleAutomation(id string, trigger scheduler.Trigger) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled[id] = trigger
	return nil
}

func (f *fakeScheduler) UnscheduleAutomation(id string) {
	f.unscheduled = append(f.unscheduled, id)
}

type fakeMessages struct {
	msg   gateway.InboundMessage
	reply string
	err   error
}

func (f *fakeMessages) HandleMessage(ctx context.Context, msg gateway.InboundMessage) (string, error) {
	f.msg = msg
	return f.reply, f.err
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func newTestServer(sched Scheduler, messages MessageHandler) http.Handler {
	s := New(Config{ListenAddr: ":0", MetricsEnabled: true}, logger.NewNop(), sched, messages)
	return s.Handler()
}

func TestGetSchedulerJobs(t *testing.T) {
	sched := newFakeScheduler()
	sched.jobs = []scheduler.JobInfo{
		{ID: "a1", NextRun: "2026-09-01T06:00:00Z"},
		{ID: "a2", NextRun: "2026-09-01T08:00:00Z"},
	}
	h := newTestServer(sched, nil)

	rec, body := doRequest(t, h, http.MethodGet, "/scheduler/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 2)
	first := jobs[0].(map[string]any)
	assert.Equal(t, "a1", first["id"])
	assert.Equal(t, "2026-09-01T06:00:00Z", first["nextRun"])
}

func TestGetSchedulerJobsEmpty(t *testing.T) {
	h := newTestServer(newFakeScheduler(), nil)

	rec, body := doRequest(t, h, http.MethodGet, "/scheduler/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["jobs"])
}

func TestPauseAlwaysSucceeds(t *testing.T) {
	sched := newFakeScheduler()
	h := newTestServer(sched, nil)

	rec, body := doRequest(t, h, http.MethodPost, "/scheduler/pause/nothere", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"nothere"}, sched.unscheduled)
}

func TestRescheduleMissingTrigger(t *testing.T) {
	h := newTestServer(newFakeScheduler(), nil)

	rec, body := doRequest(t, h, http.MethodPost, "/scheduler/reschedule/a1", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "trigger")
}

func TestRescheduleEmptyBody(t *testing.T) {
	h := newTestServer(newFakeScheduler(), nil)

	rec, body := doRequest(t, h, http.MethodPost, "/scheduler/reschedule/a1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "trigger")
}

func TestRescheduleValidTrigger(t *testing.T) {
	sched := newFakeScheduler()
	h := newTestServer(sched, nil)

	rec, body := doRequest(t, h, http.MethodPost, "/scheduler/reschedule/a1",
		`{"trigger":{"time":"06:30","days":["mon","wed"],"timezone":"America/Toronto"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	trigger, ok := sched.scheduled["a1"]
	require.True(t, ok)
	assert.Equal(t, "06:30", trigger.Time)
	assert.Equal(t, []string{"mon", "wed"}, trigger.Days)
	assert.Equal(t, "America/Toronto", trigger.Timezone)
}

func TestRescheduleInvalidTrigger(t *testing.T) {
	sched := newFakeScheduler()
	sched.scheduleErr = &scheduler.InvalidTriggerError{Detail: "invalid time: noon"}
	h := newTestServer(sched, nil)

	rec, body := doRequest(t, h, http.MethodPost, "/scheduler/reschedule/a1",
		`{"trigger":{"time":"noon","days":["mon"]}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid time")
}

func TestGatewayMessage(t *testing.T) {
	messages := &fakeMessages{reply: "🧘 *STRESS* – done"}
	h := newTestServer(newFakeScheduler(), messages)

	rec, body := doRequest(t, h, http.MethodPost, "/gateway/message",
		`{"from":"alice","text":"help me relax"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "🧘 *STRESS* – done", body["reply"])
	assert.Equal(t, "http", messages.msg.Channel)
	assert.Equal(t, "help me relax", messages.msg.Text)
}

func TestGatewayMessageMissingText(t *testing.T) {
	h := newTestServer(newFakeScheduler(), &fakeMessages{})

	rec, body := doRequest(t, h, http.MethodPost, "/gateway/message", `{"from":"alice"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "text")
}

func TestGatewayMessageHandlerError(t *testing.T) {
	messages := &fakeMessages{err: errors.New("worker crashed")}
	h := newTestServer(newFakeScheduler(), messages)

	rec, body := doRequest(t, h, http.MethodPost, "/gateway/message", `{"text":"hi"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "worker crashed")
}

func TestGatewayMessageUnavailable(t *testing.T) {
	h := newTestServer(newFakeScheduler(), nil)

	rec, _ := doRequest(t, h, http.MethodPost, "/gateway/message", `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(newFakeScheduler(), nil)

	rec, body := doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsExposed(t *testing.T) {
	h := newTestServer(newFakeScheduler(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
