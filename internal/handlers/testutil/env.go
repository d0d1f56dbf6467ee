package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/api"
	"github.com/charlesng35/mentorlink/internal/app"
	iauth "github.com/charlesng35/mentorlink/internal/auth"
	sharedtestutil "github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
	"github.com/charlesng35/mentorlink/internal/monitoring"
	"github.com/charlesng35/mentorlink/internal/security"
	"github.com/charlesng35/mentorlink/pkg/response"
)

const jwtSecret = "handler-suite-super-secret-key-32-bytes!!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
// It seeds a mentor and a mentee joined by an accepted request, an unrelated mentee and an admin.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Config     *app.Config
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Stack      *api.Stack
	Monitoring *monitoring.Module

	Mentor   *models.User
	Mentee   *models.User
	Outsider *models.User
	Admin    *models.User
	Request  *models.MentorshipRequest
}

// NewEnv provisions a fresh handler test environment.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "handler-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{AllowedOrigins: []string{"*"}},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	mon, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)

	stack, err := api.NewStack(db, cfg, api.StackOptions{})
	require.NoError(t, err)
	t.Cleanup(stack.Gateway.Shutdown)

	router, err := api.NewRouter(api.RouterDeps{
		Config:     cfg,
		JWT:        jwtSvc,
		Stack:      stack,
		Monitoring: mon,
		Audit:      security.NewAuditService(db, jwtSvc, cfg),
	})
	require.NoError(t, err)

	env := &Env{
		T:          t,
		DB:         db,
		Config:     cfg,
		Router:     router,
		JWT:        jwtSvc,
		Stack:      stack,
		Monitoring: mon,
	}
	env.Mentor = sharedtestutil.MustCreateUser(t, db, "Bea Mentor", models.RoleMentor)
	env.Mentee = sharedtestutil.MustCreateUser(t, db, "Ada Mentee", models.RoleMentee)
	env.Outsider = sharedtestutil.MustCreateUser(t, db, "Cy Outsider", models.RoleMentee)
	env.Admin = sharedtestutil.MustCreateUser(t, db, "Dee Admin", models.RoleAdmin)
	env.Request = sharedtestutil.MustCreateRequest(t, db, env.Mentor.ID, env.Mentee.ID, models.RequestAccepted)
	return env
}

// Token issues an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	require.NoError(e.T, err)
	return token
}

// Do performs an HTTP request against the router. A nil user sends no Authorization header.
func (e *Env) Do(method, path string, body any, user *models.User) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+e.Token(user))
	}

	recorder := httptest.NewRecorder()
	e.Router.ServeHTTP(recorder, req)
	return recorder
}

// DecodeResponse unmarshals a standard response envelope, decoding its data into dest when non-nil.
func DecodeResponse(t *testing.T, recorder *httptest.ResponseRecorder, dest any) response.Response {
	t.Helper()

	var envelope struct {
		Success bool                `json:"success"`
		Data    json.RawMessage     `json:"data"`
		Error   *response.ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope), recorder.Body.String())
	if dest != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, dest))
	}
	return response.Response{Success: envelope.Success, Error: envelope.Error}
}

// AssertStatus fails the test with the response body when the status code differs.
func AssertStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, recorder.Code, recorder.Body.String())
}

// Server exposes the router over a real listener, for websocket tests.
func (e *Env) Server() *httptest.Server {
	e.T.Helper()
	server := httptest.NewServer(e.Router)
	e.T.Cleanup(server.Close)
	return server
}
