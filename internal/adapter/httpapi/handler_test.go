package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-repo-judge/internal/adapter/queue"
	"github-repo-judge/internal/adapter/repository"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
)

func init() { gin.SetMode(gin.TestMode) }

type testServer struct {
	router *gin.Engine
	queue  *queue.JobQueue
	repo   *repository.MemoryRepo
}

func newTestServer(t *testing.T, handler queue.Handler) *testServer {
	t.Helper()
	q := queue.New(handler, queue.WithLogger(logger.Nop()))
	q.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})

	repo := repository.NewMemoryRepo()
	router := NewRouter()
	NewHandler(router, q, repo)
	return &testServer{router: router, queue: q, repo: repo}
}

func (s *testServer) do(method, path, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (s *testServer) waitTerminal(t *testing.T, jobID string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		_, last = s.do(http.MethodGet, "/jobs/"+jobID, "")
		return last["status"] == string(domain.JobCompleted) || last["status"] == string(domain.JobFailed)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestSubmitAndPoll(t *testing.T) {
	srv := newTestServer(t, func(_ context.Context, p domain.JobPayload) (*domain.EvaluationResult, error) {
		if strings.Contains(p.RepoURL, "missing") {
			return nil, errors.New("[NOT_FOUND] 仓库不存在")
		}
		return &domain.EvaluationResult{SubmissionID: p.SubmissionID, Verdict: &domain.Verdict{TotalScore: 81}}, nil
	})

	code, body := srv.do(http.MethodPost, "/submissions",
		`{"submission_id":"s-1","repo_url":"https://github.com/team/app/tree/main","rubric":{"title":"T","requirements":["a"]}}`)
	require.Equal(t, http.StatusAccepted, code)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "s-1", body["submission_id"])

	done := srv.waitTerminal(t, jobID)
	assert.Equal(t, "completed", done["status"])
	result := done["result"].(map[string]any)
	assert.Equal(t, float64(81), result["verdict"].(map[string]any)["total_score"])
	assert.NotContains(t, done, "error")

	code, body = srv.do(http.MethodPost, "/submissions", `{"repo_url":"https://github.com/team/missing"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.NotEmpty(t, body["submission_id"], "generated when absent")

	failed := srv.waitTerminal(t, body["job_id"].(string))
	assert.Equal(t, "failed", failed["status"])
	assert.Contains(t, failed["error"], "仓库不存在")
	assert.NotContains(t, failed, "result")
}

func TestSubmit_Validation(t *testing.T) {
	srv := newTestServer(t, func(context.Context, domain.JobPayload) (*domain.EvaluationResult, error) {
		return &domain.EvaluationResult{}, nil
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "缺少 repo_url", body: `{"team_name":"x"}`},
		{name: "非法地址", body: `{"repo_url":"https://github.com/only-owner"}`},
		{name: "非法 JSON", body: `{"repo_url":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := srv.do(http.MethodPost, "/submissions", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Equal(t, 0, srv.queue.Len())
}

func TestJobStatus_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	code, body := srv.do(http.MethodGet, "/jobs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "job not found", body["error"])
}

func TestEvaluationAndLeaderboard(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	for id, score := range map[string]int{"a": 40, "b": 95, "c": 70} {
		require.NoError(t, srv.repo.SaveEvaluation(ctx, &domain.EvaluationRecord{SubmissionID: id, TeamName: "team-" + id, TotalScore: score}))
	}

	code, body := srv.do(http.MethodGet, "/evaluations/b", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(95), body["total_score"])

	code, _ = srv.do(http.MethodGet, "/evaluations/zzz", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = srv.do(http.MethodGet, "/leaderboard?limit=2", "")
	require.Equal(t, http.StatusOK, code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "b", first["submission_id"])
	assert.Equal(t, float64(1), first["rank"])

	code, _ = srv.do(http.MethodGet, "/leaderboard?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := srv.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["queue_depth"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "repojudge_")
}
