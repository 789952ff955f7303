package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intentlabs/transformd/backend/domain"
	"github.com/intentlabs/transformd/backend/event"
	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/model"
	"github.com/intentlabs/transformd/backend/model/modeltest"
	"github.com/intentlabs/transformd/backend/session"
	"github.com/intentlabs/transformd/backend/store"
)

func newTestServer(t *testing.T) (*Server, *modeltest.Provider) {
	t.Helper()

	provider := modeltest.New()
	bus := event.NewBus(nil)
	t.Cleanup(bus.Close)
	manager := session.NewManager(domain.DefaultCatalog(), provider, store.NewMemoryStore(), bus)
	return NewServer(manager, prometheus.NewRegistry(), nil), provider
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestConversationRoundTrip(t *testing.T) {
	srv, provider := newTestServer(t)
	provider.SetFact("discover.target_technology", model.ExtractedFact{
		Found: true, Value: fact.ScalarValue("Vue"), Confidence: 0.9,
	})

	rec := do(t, srv, http.MethodPost, "/v1/conversations", messageRequest{Message: "migrate react to vue"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}

	var reply session.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.SessionID == "" || reply.Question == nil {
		t.Fatalf("reply = %+v, want session id and question", reply)
	}

	rec = do(t, srv, http.MethodPost, fmt.Sprintf("/v1/conversations/%s/messages", reply.SessionID),
		messageRequest{Message: "our team has eight people"})
	if rec.Code != http.StatusOK {
		t.Fatalf("continue status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/v1/conversations/%s/summary", reply.SessionID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body %s", rec.Code, rec.Body)
	}
	var summary session.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if len(summary.Phases) != 4 {
		t.Errorf("summary has %d phase slots, want 4", len(summary.Phases))
	}

	rec = do(t, srv, http.MethodGet, fmt.Sprintf("/v1/conversations/%s/log", reply.SessionID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("log status = %d", rec.Code)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/conversations/nope/messages", messageRequest{Message: "hello"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var er errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if er.Kind != "session_not_found" {
		t.Errorf("kind = %s", er.Kind)
	}
}

func TestEmptyMessageIs422(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/conversations", messageRequest{Message: "   "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestMalformedBodyIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}
