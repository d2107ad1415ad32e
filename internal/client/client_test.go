package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProbe(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("probe hit %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()
	if !New(up.URL, "").Probe(context.Background()) {
		t.Fatal("healthy gateway reported offline")
	}

	sick := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer sick.Close()
	if New(sick.URL, "").Probe(context.Background()) {
		t.Fatal("erroring gateway reported online")
	}

	dead := httptest.NewServer(nil)
	dead.Close() // connection refused from here on
	if New(dead.URL, "").Probe(context.Background()) {
		t.Fatal("unreachable gateway reported online")
	}
}

func TestLoginStoresToken(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["role"] != "student" {
				t.Errorf("role = %q", req["role"])
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
		case "/quiz/subjects":
			sawAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.Login(context.Background(), "ann", "", "student"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Subjects(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sawAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q, want the freshly issued token", sawAuth)
	}
}

func TestErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "question order number already exists: 3", http.StatusConflict)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.StartAttempt(context.Background(), "1", "")
	if err == nil {
		t.Fatal("conflict not surfaced")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "order number") {
		t.Fatalf("error lacks status and body: %v", err)
	}
}

func TestStartAttemptSendsPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "123" {
			t.Errorf("password = %q", req["password"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "a1"})
	}))
	defer srv.Close()

	id, err := New(srv.URL, "tok").StartAttempt(context.Background(), "1", "123")
	if err != nil {
		t.Fatal(err)
	}
	if id != "a1" {
		t.Fatalf("id = %q", id)
	}
}
