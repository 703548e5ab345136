package ctlclient

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
)

// fakeServer runs a minimal stand-in for internal/daemon.Server's JSON
// protocol over a Unix socket, just enough to exercise the Client.
func fakeServer(t *testing.T) (socketPath string, sessions *int) {
	t.Helper()

	dir := t.TempDir()
	socketPath = filepath.Join(dir, "suggestd.sock")

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	active := 2
	sessions = &active

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cursor_id":   "cur-1",
			"suggestions": []interface{}{},
			"is_pending":  false,
		})
	})
	mux.HandleFunc("/v1/click", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/close", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/session/close", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/debug/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"active_sessions": *sessions})
	})
	mux.HandleFunc("/debug/ranking", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"ranking": {"apps", "contacts"}})
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	t.Cleanup(func() { srv.Close() })

	return socketPath, sessions
}

func TestClient_Query(t *testing.T) {
	socketPath, _ := fakeServer(t)
	client := New(socketPath)

	result, err := client.Query(context.Background(), "sess-1", "hel")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.CursorID != "cur-1" {
		t.Errorf("expected cursor_id %q, got %q", "cur-1", result.CursorID)
	}
}

func TestClient_ClickAndClose(t *testing.T) {
	socketPath, _ := fakeServer(t)
	client := New(socketPath)

	if err := client.Click(context.Background(), "cur-1", 0); err != nil {
		t.Errorf("Click failed: %v", err)
	}
	if err := client.Close(context.Background(), "cur-1", 3); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := client.CloseSession(context.Background(), "sess-1"); err != nil {
		t.Errorf("CloseSession failed: %v", err)
	}
}

func TestClient_Stats(t *testing.T) {
	socketPath, _ := fakeServer(t)
	client := New(socketPath)

	stats, err := client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats["active_sessions"] != 2 {
		t.Errorf("expected 2 active sessions, got %d", stats["active_sessions"])
	}
}

func TestClient_Ranking(t *testing.T) {
	socketPath, _ := fakeServer(t)
	client := New(socketPath)

	ranking, err := client.Ranking(context.Background())
	if err != nil {
		t.Fatalf("Ranking failed: %v", err)
	}
	if len(ranking) != 2 || ranking[0] != "apps" {
		t.Errorf("unexpected ranking: %v", ranking)
	}
}

func TestClient_DialFailure(t *testing.T) {
	client := New(filepath.Join(t.TempDir(), "nonexistent.sock"))
	_, err := client.Query(context.Background(), "sess-1", "x")
	if err == nil {
		t.Error("expected error dialing a nonexistent socket")
	}
}
