package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/agents"
	"github.com/JGenereux/ai-interviewer/internal/cache"
	"github.com/JGenereux/ai-interviewer/internal/execution"
	"github.com/JGenereux/ai-interviewer/internal/feedback"
	"github.com/JGenereux/ai-interviewer/internal/handlers"
	"github.com/JGenereux/ai-interviewer/internal/lifecycle"
	"github.com/JGenereux/ai-interviewer/internal/llm"
	"github.com/JGenereux/ai-interviewer/internal/middleware"
	"github.com/JGenereux/ai-interviewer/internal/models"
	"github.com/JGenereux/ai-interviewer/internal/prompts"
	"github.com/JGenereux/ai-interviewer/internal/realtime"
	"github.com/JGenereux/ai-interviewer/internal/repositories"
	"github.com/JGenereux/ai-interviewer/internal/routers"
	"github.com/JGenereux/ai-interviewer/internal/testhelpers"
	"github.com/JGenereux/ai-interviewer/internal/tools"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "handler-secret"
	internalKey = "internal-secret"
)

type fakeProvider struct {
	structuredFn func(req llm.StructuredRequest) ([]byte, error)
	imageFn      func(image []byte) (string, error)
}

func (f *fakeProvider) GenerateStructured(_ context.Context, req llm.StructuredRequest) ([]byte, error) {
	return f.structuredFn(req)
}

func (f *fakeProvider) InterpretImage(_ context.Context, _ string, image []byte, _ string) (string, error) {
	return f.imageFn(image)
}

func (f *fakeProvider) GetProviderName() string { return "fake" }

type fakeRunner struct{ result execution.Result }

func (f fakeRunner) Run(context.Context, string, string, string) (execution.Result, error) {
	return f.result, nil
}

type fakePicker struct{ q *models.Question }

func (f fakePicker) Next(context.Context, string, models.Difficulty) (*models.Question, bool, error) {
	return f.q, false, nil
}

type fakeSynth struct {
	mu    sync.Mutex
	err   error
	calls []feedback.Input
}

func (f *fakeSynth) Synthesize(_ context.Context, in feedback.Input) (*models.InterviewFeedback, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return behavioralFeedback(), nil
}

func behavioralFeedback() *models.InterviewFeedback {
	return &models.InterviewFeedback{
		Mode:               models.ModeBehavioral,
		OverallScore:       7,
		OverallSummary:     "Clear stories with measurable outcomes.",
		HireRecommendation: models.LeanHire,
		Recommendations:    []models.Recommendation{{Area: "STAR", Suggestion: "State the result earlier", Priority: models.PriorityMedium}},
		Behavioral: &models.BehavioralFeedback{
			Communication: 8, Leadership: 6, Teamwork: 7, Adaptability: 7,
			StarMethodUsage: "Mostly consistent", ResumeAlignment: "Matches the compiler work",
		},
	}
}

type apiEnv struct {
	db      *repositories.Store
	clock   time.Time
	mu      sync.Mutex
	synth   *fakeSynth
	runner  *fakeRunner
	handler http.Handler
}

func (e *apiEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

func (e *apiEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.clock = e.clock.Add(d)
	e.mu.Unlock()
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	store := repositories.NewStore(testhelpers.SetupTestDB(t))
	mr := miniredis.RunT(t)
	c := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)

	env := &apiEnv{
		db:     store,
		clock:  time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		synth:  &fakeSynth{},
		runner: &fakeRunner{result: execution.Result{Stdout: "[0, 1]\n"}},
	}
	manager := lifecycle.NewManager(store, c, lifecycle.DefaultConfig(), nil,
		lifecycle.WithClock(env.now),
		lifecycle.WithCodeRunner(env.runner),
	)

	pm, err := prompts.NewPromptManager()
	require.NoError(t, err)
	provider := &fakeProvider{
		structuredFn: func(llm.StructuredRequest) ([]byte, error) {
			return []byte(`{"startLine":2,"endLine":9,"snippet":"seen = {}"}`), nil
		},
		imageFn: func([]byte) (string, error) { return "A hash map from value to index.", nil },
	}
	question := &models.Question{ID: "q1", Title: "Two Sum", Difficulty: models.Easy, PromptMarkdown: "Return indices of two numbers adding to target."}
	getQuestion := tools.NewGetQuestion(fakePicker{q: question}, manager)
	registry, err := agents.NewRegistry(tools.NewEndInterview())
	require.NoError(t, err)
	bridge := realtime.NewBridge(manager, func(cfg agents.SessionConfig) (*agents.Session, error) {
		built, err := agents.BuildAgents(cfg, pm)
		if err != nil {
			return nil, err
		}
		return agents.NewSession(cfg, built, registry, nil)
	}, nil, nil)

	interviewHandler := handlers.NewInterviewHandler(manager, handlers.InterviewDeps{
		Questions: getQuestion,
		Hinter:    tools.NewHinter(provider, pm),
		Vision:    tools.NewVision(provider, pm, 64),
		Feedback:  tools.NewFeedbackService(manager, nil, env.synth, nil),
		Bridge:    bridge,
	}, nil)

	env.handler = routers.New(routers.Handlers{
		Interview: interviewHandler,
		User:      handlers.NewUserHandler(store, c, time.Minute, time.Minute, nil),
		Health:    handlers.NewHealthHandler(map[string]handlers.Check{"database": store.Ping, "cache": c.Ping}),
		Internal:  handlers.NewInternalHandler(manager, nil),
	}, routers.Options{JWTSecret: testSecret, InternalKey: internalKey})
	return env
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (e *apiEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *apiEnv) start(t *testing.T, userID string, mode models.Mode) lifecycle.StartResult {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/interviews", userID, models.StartInterviewRequest{Mode: string(mode)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[lifecycle.StartResult](t, rec)
}

func TestStartAndEndSettleBilling(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)

	started := env.start(t, "u1", models.ModeFull)
	assert.Equal(t, int64(750), started.TokensPrepaid)
	assert.Equal(t, int64(250), started.NewBalance)

	env.advance(5 * time.Minute)
	rec := env.do(t, http.MethodPost, "/api/v1/interviews/"+started.InterviewID+"/end", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ended := decode[lifecycle.EndResult](t, rec)
	assert.Equal(t, int64(250), ended.TokensUsed)
	assert.Equal(t, int64(500), ended.Difference)
	assert.Equal(t, int64(750), ended.NewBalance)
	assert.False(t, ended.AlreadyEnded)

	env.advance(5 * time.Minute)
	rec = env.do(t, http.MethodPost, "/api/v1/interviews/"+started.InterviewID+"/end", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decode[lifecycle.EndResult](t, rec)
	assert.True(t, replay.AlreadyEnded)
	assert.Equal(t, ended.TokensUsed, replay.TokensUsed)
	assert.Equal(t, ended.NewBalance, replay.NewBalance)
}

func TestStartRejections(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "poor", 100)

	rec := env.do(t, http.MethodPost, "/api/v1/interviews", "poor", models.StartInterviewRequest{Mode: "full"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient_tokens", decode[models.ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/interviews", "poor", models.StartInterviewRequest{Mode: "pairing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_mode", decode[models.ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/interviews", "", models.StartInterviewRequest{Mode: "full"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInterviewOwnership(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)
	testhelpers.SeedUser(t, env.db.DB, "u2", 1000)
	started := env.start(t, "u1", models.ModeBehavioral)

	for _, path := range []string{"", "/end", "/feedback"} {
		method := http.MethodPost
		if path == "" {
			method = http.MethodGet
		}
		rec := env.do(t, method, "/api/v1/interviews/"+started.InterviewID+path, "u2", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/interviews/missing", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/interviews", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Interview](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, started.InterviewID, list[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/interviews?limit=zero", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveFinalizesAndValidatesFeedbackMode(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)
	started := env.start(t, "u1", models.ModeTechnical)
	path := "/api/v1/interviews/" + started.InterviewID

	wrong := behavioralFeedback()
	wrong.Mode = models.ModeTechnical
	rec := env.do(t, http.MethodPut, path, "u1", models.SaveInterviewRequest{Feedback: wrong})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode[models.ErrorResponse](t, rec).Code)

	env.advance(2 * time.Minute)
	code := "print('hi')"
	rec = env.do(t, http.MethodPut, path, "u1", models.SaveInterviewRequest{
		Messages: []models.Message{
			{MessageID: "m2", Role: "user", Content: "I would use a hash map", Created: 2},
			{MessageID: "m1", Role: "assistant", Content: "How would you start?", Created: 1},
		},
		Code: &code,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[lifecycle.SaveResult](t, rec)
	assert.Equal(t, int64(100), saved.TokensUsed)
	assert.Equal(t, int64(900), saved.NewBalance)
	assert.Equal(t, int64(2), saved.MessagesStored)

	rec = env.do(t, http.MethodGet, path, "u1", nil)
	iv := decode[models.Interview](t, rec)
	assert.Equal(t, models.StatusCompleted, iv.Status)
	assert.True(t, iv.TokensDeducted)
	assert.Equal(t, code, iv.Code)
}

func TestWorkbenchEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)
	started := env.start(t, "u1", models.ModeTechnical)
	base := "/api/v1/interviews/" + started.InterviewID

	rec := env.do(t, http.MethodPost, base+"/question?difficulty=easy&language=Python", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[models.QuestionResponse](t, rec)
	assert.Equal(t, "q1", q.Question.ID)
	require.NotEmpty(t, q.AttemptID)

	env.runner.result = execution.Result{Stderr: "NameError: name 'x' is not defined"}
	rec = env.do(t, http.MethodPost, base+"/run", "u1", models.RunCodeRequest{Language: "python", Code: "print(x)"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	run := decode[models.RunCodeResponse](t, rec)
	assert.False(t, run.Passed)
	assert.Equal(t, q.AttemptID, run.AttemptID)

	rec = env.do(t, http.MethodPost, base+"/run", "u1", models.RunCodeRequest{Language: "cobol", Code: "DISPLAY 'HI'."})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/hint", "u1", models.HintRequest{
		Code:               "def two_sum(nums, target):\n    for i in range(len(nums)):\n        pass\n",
		ProblemDescription: "Two Sum",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hint := decode[models.HintResponse](t, rec)
	assert.Equal(t, 2, hint.StartLine)
	assert.LessOrEqual(t, hint.EndLine-hint.StartLine, tools.MaxHintLines-1)

	small := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	rec = env.do(t, http.MethodPost, base+"/whiteboard", "u1", models.WhiteboardRequest{Image: "data:image/png;base64," + small})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "A hash map from value to index.", decode[models.WhiteboardResponse](t, rec).Interpretation)

	large := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 128))
	rec = env.do(t, http.MethodPost, base+"/whiteboard", "u1", models.WhiteboardRequest{Image: large})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "image_too_large", decode[models.ErrorResponse](t, rec).Code)
}

func TestFeedbackEndpointLeavesBillingOpen(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)
	started := env.start(t, "u1", models.ModeBehavioral)
	path := "/api/v1/interviews/" + started.InterviewID

	rec := env.do(t, http.MethodPost, path+"/feedback", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fb := decode[models.InterviewFeedback](t, rec)
	assert.Equal(t, models.ModeBehavioral, fb.Mode)
	assert.Nil(t, fb.Technical)

	iv := decode[models.Interview](t, env.do(t, http.MethodGet, path, "u1", nil))
	require.NotNil(t, iv.Feedback)
	assert.Equal(t, models.StatusActive, iv.Status)
	assert.False(t, iv.TokensDeducted)

	env.synth.err = feedback.ErrFeedbackGenerationFailed
	rec = env.do(t, http.MethodPost, path+"/feedback", "u1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	env.synth.err = feedback.ErrInvalidFeedback
	rec = env.do(t, http.MethodPost, path+"/feedback", "u1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProfileIsCachedAndInvalidated(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)

	rec := env.do(t, http.MethodGet, "/api/v1/me", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1000), decode[models.ProfileResponse](t, rec).Tokens)

	// a write behind the store's back is hidden by the cache
	_, err := env.db.SetUserTokens(context.Background(), "u1", 5000)
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, "/api/v1/me", "u1", nil)
	assert.Equal(t, int64(1000), decode[models.ProfileResponse](t, rec).Tokens)

	// a lifecycle mutation invalidates it
	env.start(t, "u1", models.ModeBehavioral)
	rec = env.do(t, http.MethodGet, "/api/v1/me", "u1", nil)
	assert.Equal(t, int64(4250), decode[models.ProfileResponse](t, rec).Tokens)

	rec = env.do(t, http.MethodGet, "/api/v1/me", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderboard(t *testing.T) {
	env := newAPIEnv(t)
	for i, id := range []string{"a", "b", "c"} {
		u := testhelpers.SeedUser(t, env.db.DB, id, 0)
		require.NoError(t, env.db.DB.Model(u).Update("xp", (i+1)*100).Error)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/leaderboard?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[[]models.LeaderboardEntry](t, rec)
	require.Len(t, board, 2)
	assert.Equal(t, "c", board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "b", board[1].UserID)
}

func TestInternalSweepRequiresKey(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)
	started := env.start(t, "u1", models.ModeFull)
	env.advance(2 * time.Hour)

	rec := env.do(t, http.MethodPost, "/internal/sweep", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set(middleware.InternalKeyHeader, internalKey)
	out := httptest.NewRecorder()
	env.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())
	assert.Equal(t, 1, decode[lifecycle.SweepResult](t, out).Processed)

	iv := decode[models.Interview](t, env.do(t, http.MethodGet, "/api/v1/interviews/"+started.InterviewID, "u1", nil))
	assert.Equal(t, models.StatusAbandoned, iv.Status)
	require.NotNil(t, iv.TokensUsed)
	assert.Equal(t, int64(750), *iv.TokensUsed)
}

func TestHealthEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ready := decode[handlers.ReadinessResponse](t, rec)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"].Status)
	assert.Equal(t, "ok", ready.Checks["cache"].Status)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "interviewer_http_requests_total")
}

func TestReadyzReportsFailedChecks(t *testing.T) {
	h := handlers.NewHealthHandler(map[string]handlers.Check{
		"ok":      func(context.Context) error { return nil },
		"broken":  func(context.Context) error { return assert.AnError },
		"missing": nil,
	})
	rec := httptest.NewRecorder()
	h.ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready := decode[handlers.ReadinessResponse](t, rec)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["ok"].Status)
	assert.Equal(t, "failed", ready.Checks["broken"].Status)
	assert.Equal(t, "failed", ready.Checks["missing"].Status)
}

func TestSessionEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	testhelpers.SeedUser(t, env.db.DB, "u1", 1000)
	started := env.start(t, "u1", models.ModeBehavioral)

	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/interviews/" + started.InterviewID + "/session?token=" + token(t, "u1")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	require.NoError(t, conn.WriteJSON(realtime.InitFrame{Type: realtime.FrameInit, CandidateName: "Ada"}))
	var frame realtime.SessionFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, realtime.FrameSession, frame.Type)
	assert.Equal(t, started.InterviewID, frame.InterviewID)
	assert.Equal(t, agents.RoleCoordinator, frame.Start)

	require.NoError(t, conn.WriteJSON(agents.Event{Type: agents.EventToolCall, Tool: agents.ToolEndInterview, CallID: "c1"}))
	var result agents.Outbound
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, agents.FrameToolResult, result.Type)

	env.advance(3 * time.Minute)
	require.NoError(t, conn.WriteJSON(agents.Event{Type: agents.EventAudioDone}))
	var ended struct {
		Type    string              `json:"type"`
		Payload lifecycle.EndResult `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&ended))
	assert.Equal(t, agents.FrameInterviewEnded, ended.Type)
	assert.Equal(t, int64(150), ended.Payload.TokensUsed)

	rec := env.do(t, http.MethodGet, "/api/v1/interviews/"+started.InterviewID+"/session", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
