package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/finance-chat-gateway/internal/resources"
	"github.com/dileep-u-k/finance-chat-gateway/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(NewCalculatorTool()))
	require.NoError(t, r.Register(NewGoalProgressTool()))
	return r
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	router := gin.New()
	NewHandler(newRegistry(t)).Register(router)
	return router
}

func TestCalculator(t *testing.T) {
	r := newRegistry(t)
	cases := []struct {
		args    string
		message string
		result  *float64
	}{
		{`{"operand1": 6, "operator": "*", "operand2": 7}`, "The result is 42.", ptr(42)},
		{`{"operand1": 10, "operator": "/", "operand2": 4}`, "The result is 2.5.", ptr(2.5)},
		{`{"operand1": 1, "operator": "/", "operand2": 0}`, "Error: Division by zero is not allowed.", nil},
	}
	for _, tc := range cases {
		out, err := r.Execute(context.Background(), "", "calculate", json.RawMessage(tc.args))
		require.NoError(t, err)
		res := out.(calculationResult)
		assert.Equal(t, tc.message, res.Message)
		assert.Equal(t, tc.result, res.Result)
	}
}

func TestGoalProgress(t *testing.T) {
	r := newRegistry(t)

	out, err := r.Execute(context.Background(), "user-7", "goal_progress",
		json.RawMessage(`{"goal":"Emergency fund","target_amount":1000,"current_amount":250,"monthly_contribution":100}`))
	require.NoError(t, err)
	p := out.(goalProgress)
	assert.Equal(t, "user-7", p.UserID)
	assert.Equal(t, 25.0, p.PercentComplete)
	assert.Equal(t, 750.0, p.Remaining)
	require.NotNil(t, p.MonthsToGoal)
	assert.Equal(t, 8, *p.MonthsToGoal)

	out, err = r.Execute(context.Background(), "", "goal_progress", json.RawMessage(`{"target_amount":500,"current_amount":900}`))
	require.NoError(t, err)
	p = out.(goalProgress)
	assert.Equal(t, 100.0, p.PercentComplete)
	assert.Zero(t, p.Remaining)
	assert.Equal(t, "The goal has been reached.", p.Message)

	out, err = r.Execute(context.Background(), "", "goal_progress", json.RawMessage(`{"target_amount":500,"current_amount":100}`))
	require.NoError(t, err)
	assert.Nil(t, out.(goalProgress).MonthsToGoal)
}

func TestRegistry_Errors(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Execute(context.Background(), "", "transfer_funds", nil)
	assert.True(t, errors.Is(err, ErrToolNotFound))

	for _, args := range []string{
		`{"operand1": 1, "operator": "%", "operand2": 2}`,
		`{"operand1": "one", "operator": "+", "operand2": 2}`,
		`{"operator": "+"}`,
		`[1,2]`,
	} {
		_, err := r.Execute(context.Background(), "", "calculate", json.RawMessage(args))
		assert.True(t, errors.Is(err, ErrBadArguments), "args %s: %v", args, err)
	}

	_, err = r.Execute(context.Background(), "", "goal_progress", json.RawMessage(`{"target_amount":0,"current_amount":1}`))
	assert.True(t, errors.Is(err, ErrBadArguments))
}

func TestRegistry_DescriptorsSorted(t *testing.T) {
	descs := newRegistry(t).Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "calculate", descs[0].Name)
	assert.Equal(t, "goal_progress", descs[1].Name)
}

func TestHandler_ListTools(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tools", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tools, 2)
	assert.Equal(t, "calculate", body.Tools[0]["name"])
	assert.Contains(t, body.Tools[0], "input_schema")
}

func TestHandler_ExecuteStatuses(t *testing.T) {
	router := newRouter(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"tool":"calculate","arguments":{"operand1":1,"operator":"+","operand2":2}}`, http.StatusOK},
		{"unknown tool", `{"tool":"transfer_funds","arguments":{}}`, http.StatusNotFound},
		{"bad args", `{"tool":"calculate","arguments":{"operand1":1}}`, http.StatusBadRequest},
		{"missing tool", `{"arguments":{}}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

// The gateway-side catalog and invoker work against this server unchanged.
func TestCapabilityServer_EndToEnd(t *testing.T) {
	server := httptest.NewServer(newRouter(t))
	t.Cleanup(server.Close)

	catalog := tools.LoadCatalog(context.Background(), server.URL, server.Client())
	require.Equal(t, []string{"calculate", "goal_progress"}, catalog.Names())

	inv := tools.NewInvoker(server.URL, catalog, tools.WithHTTPClient(server.Client()))
	res := inv.Invoke(context.Background(), "user-1", tools.NewToolCall("c1", "calculate", `{"operand1":2,"operator":"*","operand2":21}`))
	require.False(t, res.IsError(), res.Error)
	assert.JSONEq(t, `{"result":42,"message":"The result is 42."}`, string(res.Result))

	res = inv.Invoke(context.Background(), "user-1", tools.NewToolCall("c2", "goal_progress", `{"target_amount":100,"current_amount":50}`))
	require.False(t, res.IsError(), res.Error)
	assert.Contains(t, string(res.Result), `"user_id":"user-1"`)
}

func TestResourceServer_Streamable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "budget.md"), []byte("Rent: $900"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tips.txt"), []byte("Pay yourself first."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte{0x89}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.md"), 0o755))

	mcpServer, count, err := NewResourceServer("test", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	httpServer := httptest.NewServer(NewResourceHandler(mcpServer))
	t.Cleanup(httpServer.Close)

	fetcher := resources.NewFetcher(resources.WithTransport(resources.TransportStreamable, httpServer.Client()))
	blob, err := fetcher.Fetch(context.Background(), httpServer.URL)
	require.NoError(t, err)
	assert.Contains(t, blob, "### budget.md\nRent: $900")
	assert.Contains(t, blob, "### tips.txt\nPay yourself first.")
	assert.NotContains(t, blob, "photo.png")
}

func TestNewResourceServer_MissingDir(t *testing.T) {
	_, _, err := NewResourceServer("test", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func ptr(f float64) *float64 { return &f }
