package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TaskAgent/backend/go/internal/agent"
	"TaskAgent/backend/go/internal/capability/sim"
	"TaskAgent/backend/go/internal/consent"
	"TaskAgent/backend/go/internal/executor"
	"TaskAgent/backend/go/internal/reporter"
	"TaskAgent/backend/go/internal/task"
	"TaskAgent/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const secret = "test-secret"

func newRouter(t *testing.T, jwtSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	device := sim.NewDevice(nil)
	exec := executor.New(executor.Capabilities{UI: device, Gestures: device}, executor.Options{Logger: logger.Discard()})
	corr := reporter.NewCorrelator(time.Second)
	a, err := agent.New(agent.Deps{
		SourceID:   "dev_01",
		Parser:     task.NewParser(task.DefaultLimits(), nil),
		Executor:   exec,
		Correlator: corr,
		Reporter:   reporter.New(corr, nil, reporter.Options{Logger: logger.Discard()}),
		Consent:    consent.NewStatic("dev_01"),
		Logger:     logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Stop)
	return NewRouter(NewAPI(a, logger.Discard()), jwtSecret)
}

func post(router http.Handler, body string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestSubmitTaskHandler(t *testing.T) {
	router := newRouter(t, "")

	rr := post(router, `{"id":"1","action":"tap","payload":{"x":100,"y":200}}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if out := decode(t, rr); out["success"] != true || out["task_id"] != "1" {
		t.Errorf("Unexpected body: %v", out)
	}

	rr = post(router, `{"id":"2","action":"detonate"}`, "")
	if out := decode(t, rr); rr.Code != http.StatusOK || out["success"] != false || out["error"] != "UnknownKind" {
		t.Errorf("Expected UnknownKind in a 200 body, got %d %v", rr.Code, out)
	}

	rr = post(router, `{not json`, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rr.Code)
	}
}

func sign(t *testing.T, sub string, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAuthMiddleware(t *testing.T) {
	router := newRouter(t, secret)
	body := `{"command":"home"}`

	if rr := post(router, body, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rr.Code)
	}
	if rr := post(router, body, "garbage"); rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", rr.Code)
	}
	if rr := post(router, body, sign(t, "someone_else", jwt.SigningMethodHS256)); rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a foreign subject, got %d", rr.Code)
	}
	rr := post(router, body, sign(t, "dev_01", jwt.SigningMethodHS256))
	if rr.Code != http.StatusOK || decode(t, rr)["success"] != true {
		t.Errorf("Expected success with a valid token, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	router := newRouter(t, secret)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if out := decode(t, rr); out["source_id"] != "dev_01" {
		t.Errorf("Unexpected health body: %v", out)
	}
}
