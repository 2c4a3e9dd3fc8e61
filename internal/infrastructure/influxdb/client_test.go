package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petro31/illuminate-door/internal/infrastructure/config"
)

// fakeServer answers the InfluxDB v2 ping and write endpoints.
type fakeServer struct {
	*httptest.Server

	mu         sync.Mutex
	lines      []string
	writeQuery []string
	writeCode  int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{writeCode: http.StatusNoContent}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			fs.mu.Lock()
			fs.writeQuery = append(fs.writeQuery, r.URL.RawQuery)
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					fs.lines = append(fs.lines, line)
				}
			}
			code := fs.writeCode
			fs.mu.Unlock()
			if code != http.StatusNoContent {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(code)
				_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) Lines() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.lines...)
}

func (fs *fakeServer) setWriteCode(code int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writeCode = code
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "automation",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 5s")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConnect_Disabled(t *testing.T) {
	client, err := Connect(config.InfluxDBConfig{Enabled: false})
	if client != nil {
		t.Error("Connect() returned a client while disabled")
	}
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := Connect(testConfig(url))
	if client != nil {
		t.Error("Connect() returned a client for an unreachable server")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect(t *testing.T) {
	srv := newFakeServer(t)

	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWritePoint_Flush(t *testing.T) {
	srv := newFakeServer(t)
	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	client.WritePointWithTime("door_event",
		map[string]string{"automation": "front", "kind": "door_opened"},
		map[string]any{"count": 1},
		ts,
	)
	client.Flush()

	waitFor(t, func() bool { return len(srv.Lines()) == 1 })
	line := srv.Lines()[0]
	if !strings.HasPrefix(line, "door_event,automation=front,kind=door_opened count=1i") {
		t.Errorf("line = %q, want door_event measurement with tags and field", line)
	}
	if !strings.HasSuffix(line, "1767268800000000000") {
		t.Errorf("line = %q, want nanosecond timestamp of 2026-01-01T12:00Z", line)
	}

	srv.mu.Lock()
	query := srv.writeQuery[0]
	srv.mu.Unlock()
	if !strings.Contains(query, "org=home") || !strings.Contains(query, "bucket=automation") {
		t.Errorf("write query = %q, want org and bucket", query)
	}
}

func TestWritePoint_AfterCloseDropped(t *testing.T) {
	srv := newFakeServer(t)
	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	client.WritePoint("door_event", nil, map[string]any{"count": 1})
	client.Flush()

	if lines := srv.Lines(); len(lines) != 0 {
		t.Errorf("lines written after Close: %v", lines)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestSetOnError(t *testing.T) {
	srv := newFakeServer(t)
	client, err := Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	errCh := make(chan error, 4)
	client.SetOnError(func(err error) { errCh <- err })

	srv.setWriteCode(http.StatusBadRequest)
	client.WritePoint("door_event", map[string]string{"automation": "front"}, map[string]any{"count": 1})
	client.Flush()
	// Second flush picks up a point still in the buffer channel.
	client.Flush()

	select {
	case got := <-errCh:
		if !errors.Is(got, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected write error callback")
	}
}

func TestClose_Nil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
