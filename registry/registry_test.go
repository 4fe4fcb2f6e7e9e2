package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTP_Publish(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody publishRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTP(srv.URL, "s3cret")
	if err := client.Publish(context.Background(), "kompoti-catalog", "kompotibabc123"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if gotPath != "/v1/tickets/kompoti-catalog" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer s3cret" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody.Name != "kompoti-catalog" || gotBody.Ticket != "kompotibabc123" {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestHTTP_Publish_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewHTTP(srv.URL, "")
	if err := client.Publish(context.Background(), "kompoti-catalog", "t"); err == nil {
		t.Fatalf("expected error for 403 response")
	}
}

func TestHTTP_Publish_Unreachable(t *testing.T) {
	client := NewHTTP("http://127.0.0.1:1", "")
	if err := client.Publish(context.Background(), "n", "t"); err == nil {
		t.Fatalf("expected error for unreachable registry")
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), "n", "t"); err != nil {
		t.Fatalf("Nop.Publish: %v", err)
	}
}
