package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"stream-lab/auth"
	"stream-lab/directory"
	"stream-lab/domain"
	"stream-lab/errors"
	"stream-lab/mocks"
	"stream-lab/repositories"
	"stream-lab/runtime"
	"stream-lab/runtime/workers"
	"stream-lab/services"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var cheap = auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fixture struct {
	router    *gin.Engine
	tokens    *auth.Tokens
	operators *mocks.MockIOperatorRepository
	ingester  *mocks.MockIngester
	index     *mocks.MockIChatIndex
	orch      *runtime.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	orch, err := runtime.NewOrchestrator(log, workers.NewSupervisor(log), runtime.DefaultConfig(), runtime.Storage{})
	require.NoError(t, err)

	f := &fixture{
		tokens:    auth.NewTokens("secret", time.Hour),
		operators: mocks.NewMockIOperatorRepository(ctrl),
		ingester:  mocks.NewMockIngester(ctrl),
		index:     mocks.NewMockIChatIndex(ctrl),
		orch:      orch,
	}
	stream := services.NewStreamService(services.StreamDeps{
		Ingester:    f.ingester,
		Stats:       orch.Analytics(),
		Music:       orch.Music(),
		TTS:         orch.TTS(),
		Goals:       orch.Goals(),
		Viewers:     orch.Directory(),
		Completions: orch.Completions(),
		Bus:         orch.Bus(),
		Search:      f.index,
	})
	f.router = NewRouter(Deps{
		Auth:         services.NewAuthService(f.operators, f.tokens, cheap),
		Stream:       stream,
		Tokens:       f.tokens,
		Inspector:    func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("inspector")) },
		BackendToken: "backend-secret",
		Log:          log,
	})
	return f
}

func (f *fixture) token(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := f.tokens.Generate("op-1", roles)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var res Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestHealthCheck(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "", nil)

	req.Equal(http.StatusOK, rec.Code)
	req.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutes_Need_A_Valid_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	req.Equal(http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/stats", "", nil).Code)
	req.Equal(http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/stats", "garbage", nil).Code)

	rec := f.do(http.MethodGet, "/api/v1/stats", f.token(t, "operator"), nil)
	req.Equal(http.StatusOK, rec.Code)
	req.True(decode(t, rec).Success)
}

func TestQueue_And_Viewer_Routes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"music queue", "/api/v1/queues/music", http.StatusOK, ""},
		{"tts queue", "/api/v1/queues/tts", http.StatusOK, ""},
		{"unknown queue", "/api/v1/queues/video", http.StatusNotFound, "NOT_FOUND"},
		{"known viewer", "/api/v1/viewers/u1", http.StatusOK, ""},
		{"unknown viewer", "/api/v1/viewers/ghost", http.StatusNotFound, "NOT_FOUND"},
		{"top viewers", "/api/v1/viewers/top?limit=5", http.StatusOK, ""},
		{"bad limit", "/api/v1/viewers/top?limit=-1", http.StatusBadRequest, "BAD_REQUEST"},
		{"goals", "/api/v1/goals", http.StatusOK, ""},
		{"bus", "/api/v1/bus", http.StatusOK, ""},
		{"chat log disabled", "/api/v1/channels/lofi/messages", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			f.orch.Directory().Observe("u1", "Alice", time.Now().UTC(), directory.Hints{})

			rec := f.do(http.MethodGet, tt.path, f.token(t, "operator"), nil)

			req.Equal(tt.status, rec.Code)
			res := decode(t, rec)
			if tt.code == "" {
				req.True(res.Success)
				return
			}
			req.False(res.Success)
			req.Equal(tt.code, res.Error.Code)
		})
	}
}

func TestSearch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	token := f.token(t, "operator")
	line := domain.ChatLine{ID: uuid.New(), Channel: "lofi", ViewerID: "u1", Content: "lofi beats please"}
	f.index.EXPECT().Search(gomock.Any(), "lofi", "beats", 5).Return([]domain.ChatLine{line}, nil)

	// When
	rec := f.do(http.MethodGet, "/api/v1/channels/lofi/search?q=beats&limit=5", token, nil)

	// Then
	req.Equal(http.StatusOK, rec.Code)
	var res struct {
		Data []domain.ChatLine `json:"data"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	req.Len(res.Data, 1)
	req.Equal(line.ID, res.Data[0].ID)

	// And an empty query is refused before reaching the index
	req.Equal(http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/channels/lofi/search", token, nil).Code)
}

func TestIngest(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	token := f.token(t, "operator")
	raw := domain.RawEvent{Kind: "comment", ViewerID: "u1", Text: "hi"}

	f.ingester.EXPECT().Ingest(gomock.Any(), raw).Return(nil)
	req.Equal(http.StatusAccepted, f.do(http.MethodPost, "/api/v1/events", token, raw).Code)

	f.ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(errors.ErrInvalidArgument)
	rec := f.do(http.MethodPost, "/api/v1/events", token, domain.RawEvent{Kind: "comment"})
	req.Equal(http.StatusBadRequest, rec.Code)
	req.Equal("BAD_REQUEST", decode(t, rec).Error.Code)
}

func TestLogin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	hash, err := cheap.Hash("CorrectPassword123!")
	req.NoError(err)
	f.operators.EXPECT().GetOperatorByEmail("op@example.com").
		Return(repositories.Operator{ID: "op-7", Email: "op@example.com", PasswordHash: hash, Roles: []string{"admin"}}, nil).
		Times(2)

	// When the password is right
	rec := f.do(http.MethodPost, "/api/v1/auth/login", "", credentials{Email: "op@example.com", Password: "CorrectPassword123!"})

	// Then a token carrying the roles is issued
	req.Equal(http.StatusOK, rec.Code)
	var res struct {
		Data tokenResponse `json:"data"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	claims, err := f.tokens.Validate(res.Data.Token)
	req.NoError(err)
	req.Equal("op-7", claims.OperatorID)
	req.True(claims.HasRole("admin"))

	// When it is wrong
	rec = f.do(http.MethodPost, "/api/v1/auth/login", "", credentials{Email: "op@example.com", Password: "nope"})
	req.Equal(http.StatusUnauthorized, rec.Code)

	// And a malformed body never reaches the service
	req.Equal(http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "x"}).Code)
}

func TestRegister_Conflict(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.operators.EXPECT().CreateOperator("op@example.com", gomock.Any(), []string{"operator"}).
		Return("", errors.ErrUserAlreadyExists)

	rec := f.do(http.MethodPost, "/api/v1/auth/register", "", credentials{Email: "op@example.com", Password: "ComplexPass123!"})

	req.Equal(http.StatusConflict, rec.Code)
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing backend token", "/api/v1/completions/" + uuid.NewString(), "", http.StatusUnauthorized},
		{"wrong backend token", "/api/v1/completions/" + uuid.NewString(), "other", http.StatusUnauthorized},
		{"malformed id", "/api/v1/completions/not-a-uuid", "backend-secret", http.StatusBadRequest},
		{"unknown request", "/api/v1/completions/" + uuid.NewString(), "backend-secret", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(http.MethodPost, tt.path, tt.token, completionRequest{Result: "ok"})
			require.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestInspector_Requires_Admin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	req.Equal(http.StatusUnauthorized, f.do(http.MethodGet, "/debug/inspect", "", nil).Code)
	req.Equal(http.StatusForbidden, f.do(http.MethodGet, "/debug/inspect", f.token(t, "operator"), nil).Code)

	rec := f.do(http.MethodGet, "/debug/inspect", f.token(t, "admin"), nil)
	req.Equal(http.StatusOK, rec.Code)
	req.Equal("inspector", rec.Body.String())
}

func TestAPI_Is_Gzipped_When_Asked(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/goals", nil)
	r.Header.Set("Authorization", "Bearer "+f.token(t, "operator"))
	r.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, r)

	req.Equal(http.StatusOK, rec.Code)
	req.Equal("gzip", rec.Header().Get("Content-Encoding"))
}

func TestServe_Stops_With_Context(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: f.router}

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, logs.GetLoggerFromLevel(slog.LevelDebug)) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		req.Fail("server did not stop")
	}
}
