package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/decision" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "k" {
			t.Errorf("X-API-Key = %q, want k", got)
		}
		var req AccessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResourceType != "tools" || req.Resource.Name != "get_weather" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(Decision{
			Allowed:        true,
			Reason:         "rule_matched",
			MatchedRule:    "devs_call_tools",
			EvaluatedRules: 1,
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", APIKey: "k"})
	d, err := c.Decide(context.Background(), AccessRequest{
		ResourceType: "tools",
		Resource:     Capability{Name: "get_weather"},
		Action:       "call",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Allowed || d.MatchedRule != "devs_call_tools" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestListPolicies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/policies" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"policies":["base","ops"]}`))
	}))
	defer srv.Close()

	names, err := New(Config{BaseURL: srv.URL}).ListPolicies(context.Background())
	if err != nil {
		t.Fatalf("ListPolicies: %v", err)
	}
	if len(names) != 2 || names[0] != "base" {
		t.Fatalf("names = %v", names)
	}
}

func TestPolicyDocumentsPassThroughUntouched(t *testing.T) {
	doc := json.RawMessage(`{"name":"ops","version":"1.0","default_effect":"deny"}`)
	var received []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			received = mustRead(t, r)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Write(doc)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if err := c.AddPolicy(context.Background(), doc); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	if string(received) != string(doc) {
		t.Fatalf("server received %s, want %s", received, doc)
	}

	back, err := c.GetPolicy(context.Background(), "ops")
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if !strings.Contains(string(back), `"name":"ops"`) {
		t.Fatalf("document = %s", back)
	}
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"policy already exists"}`))
	}))
	defer srv.Close()

	err := New(Config{BaseURL: srv.URL}).AddPolicy(context.Background(), json.RawMessage(`{}`))
	if err == nil {
		t.Fatalf("expected error for 409")
	}
	if !strings.Contains(err.Error(), "policy already exists") {
		t.Fatalf("err = %v, want the response body included", err)
	}
}

func mustRead(t *testing.T, r *http.Request) []byte {
	t.Helper()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return raw
}
