package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/acpthread/internal/engine"
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/internal/track"
	"github.com/opencode-ai/acpthread/pkg/types"
)

func testServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	thread := engine.New(nil, engine.WithTitle("review thread"))
	return New(DefaultConfig(), thread, nil), thread
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func doPost(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestGetThread(t *testing.T) {
	srv, _ := testServer(t)

	rec := doGet(t, srv, "/thread")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ThreadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "review thread", resp.Title)
	assert.Equal(t, "idle", resp.State)
	assert.Zero(t, resp.MessageCount)
}

func TestGetState(t *testing.T) {
	srv, _ := testServer(t)

	rec := doGet(t, srv, "/thread/state")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())
}

func TestGetMessages(t *testing.T) {
	srv, thread := testServer(t)
	thread.HandleUpdate("", &types.SessionUpdate{
		Kind: types.UpdateAgentMessageChunk,
		Text: "hello there",
	})

	rec := doGet(t, srv, "/thread/message")
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []*types.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello there", msgs[0].Text())

	single := doGet(t, srv, "/thread/message/"+msgs[0].ID)
	assert.Equal(t, http.StatusOK, single.Code)

	missing := doGet(t, srv, "/thread/message/nope")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetPlan(t *testing.T) {
	srv, thread := testServer(t)
	thread.HandleUpdate("", &types.SessionUpdate{
		Kind: types.UpdatePlan,
		Plan: []types.PlanEntry{
			{Content: "first", Status: types.PlanStatusCompleted},
			{Content: "second", Status: types.PlanStatusInProgress},
		},
	})

	rec := doGet(t, srv, "/thread/plan")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Todos, 2)
	assert.Equal(t, "1/2 second", resp.Progress)

	md := doGet(t, srv, "/thread/plan/markdown")
	require.Equal(t, http.StatusOK, md.Code)
	assert.Contains(t, md.Body.String(), "- [x] first")
	assert.Contains(t, md.Body.String(), "- [~] second")
}

func TestSendPrompt_NotConnected(t *testing.T) {
	srv, _ := testServer(t)

	rec := doPost(t, srv, "/thread/prompt", `{"text":"do things"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSendPrompt_BadBody(t *testing.T) {
	srv, _ := testServer(t)

	rec := doPost(t, srv, "/thread/prompt", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetMode_BadBody(t *testing.T) {
	srv, _ := testServer(t)

	rec := doPost(t, srv, "/thread/mode", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPermissions_Empty(t *testing.T) {
	srv, _ := testServer(t)

	rec := doGet(t, srv, "/thread/permissions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":[]}`, rec.Body.String())
}

func TestRespondPermission_Unknown(t *testing.T) {
	srv, _ := testServer(t)

	rec := doPost(t, srv, "/thread/permissions/nope", `{"optionId":"allow"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChanges_Disabled(t *testing.T) {
	srv, _ := testServer(t)

	assert.Equal(t, http.StatusNotFound, doGet(t, srv, "/changes").Code)
	assert.Equal(t, http.StatusNotFound, doGet(t, srv, "/changes/diff?path=a.go").Code)
}

func TestChanges_ListAndDiff(t *testing.T) {
	thread := engine.New(nil)
	changes := track.NewChangeTracker(thread.Bus())
	defer changes.Close()
	srv := New(DefaultConfig(), thread, changes)

	raw, err := json.Marshal(map[string]string{
		"file_path":  "src/a.go",
		"old_string": "old\n",
		"new_string": "new\n",
	})
	require.NoError(t, err)
	thread.Bus().PublishSync(event.Event{
		Type: event.ToolCallUpdated,
		Data: event.ToolCallUpdatedData{Record: &types.ToolCallRecord{
			ID:       "t1",
			Kind:     "edit",
			Status:   types.ToolStatusCompleted,
			RawInput: raw,
		}},
	})

	rec := doGet(t, srv, "/changes")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []track.FileChange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "src/a.go", list[0].Path)

	diff := doGet(t, srv, "/changes/diff?path=src/a.go")
	require.Equal(t, http.StatusOK, diff.Code)
	assert.Contains(t, diff.Body.String(), "-old")
	assert.Contains(t, diff.Body.String(), "+new")

	missing := doGet(t, srv, "/changes/diff?path=unknown.go")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetModes_Empty(t *testing.T) {
	srv, _ := testServer(t)

	rec := doGet(t, srv, "/thread/mode")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Modes)
}

func TestListCommands_NoRegistry(t *testing.T) {
	srv, _ := testServer(t)

	rec := doGet(t, srv, "/thread/command")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
