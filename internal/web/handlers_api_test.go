package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asheshgoplani/archive-deck/internal/archive"
)

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestStateEndpoint(t *testing.T) {
	eng := &fakeEngine{snap: archive.Snapshot{
		Phase:       archive.PhaseReady,
		Ready:       true,
		CurrentDate: "2021-01-01",
		Current:     &archive.Comic{Title: "The End"},
	}}
	srv := newTestServer(eng, &fakeHistory{location: "?date=2021-01-01"})

	rr := doRequest(srv, http.MethodGet, "/api/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["currentDate"] != "2021-01-01" {
		t.Fatalf("expected currentDate, got: %s", rr.Body.String())
	}
	if got["location"] != "?date=2021-01-01" {
		t.Fatalf("expected location, got: %s", rr.Body.String())
	}
	current, _ := got["current"].(map[string]any)
	if current["title"] != "The End" {
		t.Fatalf("expected current comic title, got: %s", rr.Body.String())
	}
}

func TestStateIncludesLoadingMessage(t *testing.T) {
	eng := &fakeEngine{snap: archive.Snapshot{Phase: archive.PhaseIndex, Stage: archive.StageIndex}}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodGet, "/api/state", "")
	if !strings.Contains(rr.Body.String(), `"loadingMessage":"Loading index..."`) {
		t.Fatalf("expected loading message, got: %s", rr.Body.String())
	}
}

func TestStateUnauthorizedWhenTokenEnabled(t *testing.T) {
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0", Token: "secret-token", Engine: &fakeEngine{}})

	rr := doRequest(srv, http.MethodGet, "/api/state", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"code":"UNAUTHORIZED"`) {
		t.Fatalf("expected UNAUTHORIZED body, got: %s", rr.Body.String())
	}

	rr = doRequest(srv, http.MethodGet, "/api/state?token=secret-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected query token to authorize, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Authorization", "bearer secret-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected bearer token to authorize, got %d", rec.Code)
	}
}

func TestNavigateEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodPost, "/api/navigate", `{"action":"previous"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	rr = doRequest(srv, http.MethodPost, "/api/navigate?action=random", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	nav, _, _, _, _ := eng.calls()
	if len(nav) != 2 || nav[0] != archive.ActionPrevious || nav[1] != archive.ActionRandom {
		t.Fatalf("unexpected navigation calls: %v", nav)
	}
}

func TestNavigateRejectsUnknownAction(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, nil)

	rr := doRequest(srv, http.MethodPost, "/api/navigate", `{"action":"sideways"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestNavigateMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, nil)

	rr := doRequest(srv, http.MethodGet, "/api/navigate", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestEngineErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not ready", archive.ErrNotReady, http.StatusServiceUnavailable, "NOT_READY"},
		{"shard failure", &archive.ShardLoadError{Year: "2001", Status: 500}, http.StatusBadGateway, "LOAD_FAILED"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeEngine{navErr: tc.err}, nil)
			rr := doRequest(srv, http.MethodPost, "/api/navigate", `{"action":"next"}`)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tc.code) {
				t.Fatalf("expected code %s, got: %s", tc.code, rr.Body.String())
			}
		})
	}
}

func TestSelectDateNotFound(t *testing.T) {
	eng := &fakeEngine{selectErr: archive.ErrDateNotFound}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodPost, "/api/select", `{"date":"1990-01-01"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), archive.NoticeDateNotFound) {
		t.Fatalf("expected notice text, got: %s", rr.Body.String())
	}
}

func TestSelectRequiresDate(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, nil)

	rr := doRequest(srv, http.MethodPost, "/api/select", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestOpenResultEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodPost, "/api/open?date=2020-06-01", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	_, _, opened, _, _ := eng.calls()
	if len(opened) != 1 || opened[0] != "2020-06-01" {
		t.Fatalf("unexpected open calls: %v", opened)
	}
}

func TestQueryEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodPost, "/api/query", `{"query":"coffee"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}
	rr = doRequest(srv, http.MethodPost, "/api/query", `{"query":"coffee","immediate":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}

	_, _, _, queries, now := eng.calls()
	if len(queries) != 2 || now != 1 {
		t.Fatalf("expected 2 queries and 1 immediate search, got %v / %d", queries, now)
	}
}

func TestQueryRejectsBadJSON(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, nil)

	rr := doRequest(srv, http.MethodPost, "/api/query", `{"query":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	eng := &fakeEngine{results: []archive.Result{
		{Date: "2020-06-01", Title: "Coffee", Excerpt: "...more coffee..."},
	}}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodGet, "/api/search?q=coffee", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got searchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(got.Results) != 1 || got.Status != archive.StatusText(1) {
		t.Fatalf("unexpected search response: %+v", got)
	}
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, nil)

	rr := doRequest(srv, http.MethodGet, "/api/search?q=", "")
	if !strings.Contains(rr.Body.String(), `"results":[]`) || !strings.Contains(rr.Body.String(), `"status":""`) {
		t.Fatalf("expected empty results and status, got: %s", rr.Body.String())
	}
}

func TestDismissNoticeEndpoint(t *testing.T) {
	eng := &fakeEngine{snap: archive.Snapshot{Notice: archive.NoticeDateNotFound}}
	srv := newTestServer(eng, nil)

	rr := doRequest(srv, http.MethodPost, "/api/notice/dismiss", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if strings.Contains(rr.Body.String(), `"notice"`) {
		t.Fatalf("expected notice cleared, got: %s", rr.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeHistory{back: true})

	if rr := doRequest(srv, http.MethodPost, "/api/history/back", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected back to succeed, got %d", rr.Code)
	}
	if rr := doRequest(srv, http.MethodPost, "/api/history/forward", ""); rr.Code != http.StatusConflict {
		t.Fatalf("expected forward conflict, got %d", rr.Code)
	}
	if rr := doRequest(srv, http.MethodPost, "/api/history/sideways", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected unknown direction 404, got %d", rr.Code)
	}
}

func TestHistoryUnavailable(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, nil)

	if rr := doRequest(srv, http.MethodPost, "/api/history/back", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without history, got %d", rr.Code)
	}
}
