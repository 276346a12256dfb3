package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

const latin1Page = "<html><head><title>Caf\xe9</title></head><body><p>Caf\xe9 cr\xe8me</p></body></html>"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>ok</title><body>ua=" + r.UserAgent() + "</body></html>"))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte(latin1Page))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("gzipped body"))
		_ = gz.Close()
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write([]byte("brotli body"))
		_ = bw.Close()
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func allStrategies(cfg Config) []Fetcher {
	return []Fetcher{NewColly(cfg), NewTransport(cfg), NewStdlib(cfg)}
}

func TestStrategies_Success(t *testing.T) {
	srv := newTestServer(t)

	for _, f := range allStrategies(DefaultConfig()) {
		t.Run(string(f.Strategy()), func(t *testing.T) {
			res, err := f.Fetch(context.Background(), srv.URL+"/ok", Options{UserAgent: "test-agent", Timeout: time.Second})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if res.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", res.StatusCode)
			}
			if !strings.Contains(string(res.Body), "ua=test-agent") {
				t.Errorf("user agent not sent, body = %q", res.Body)
			}
			if !strings.HasPrefix(res.ContentType, "text/html") {
				t.Errorf("unexpected content type %q", res.ContentType)
			}
			if res.Strategy != f.Strategy() {
				t.Errorf("expected strategy %q, got %q", f.Strategy(), res.Strategy)
			}
		})
	}
}

func TestStrategies_StatusError(t *testing.T) {
	srv := newTestServer(t)

	for _, f := range allStrategies(DefaultConfig()) {
		t.Run(string(f.Strategy()), func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+"/missing", Options{Timeout: time.Second})
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if se.StatusCode != http.StatusNotFound {
				t.Errorf("expected 404, got %d", se.StatusCode)
			}
		})
	}
}

func TestStrategies_FollowRedirects(t *testing.T) {
	srv := newTestServer(t)

	for _, f := range allStrategies(DefaultConfig()) {
		t.Run(string(f.Strategy()), func(t *testing.T) {
			res, err := f.Fetch(context.Background(), srv.URL+"/redirect", Options{Timeout: time.Second})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if !strings.Contains(string(res.Body), "<title>ok</title>") {
				t.Errorf("redirect not followed, body = %q", res.Body)
			}
		})
	}
}

func TestStrategies_RedirectLoop(t *testing.T) {
	srv := newTestServer(t)
	cfg := DefaultConfig()
	cfg.MaxRedirects = 3

	for _, f := range []Fetcher{NewTransport(cfg), NewStdlib(cfg)} {
		t.Run(string(f.Strategy()), func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+"/loop", Options{Timeout: time.Second})
			if !errors.Is(err, ErrTooManyRedirects) {
				t.Errorf("expected ErrTooManyRedirects, got %v", err)
			}
		})
	}
}

func TestTransportFetcher_DecodesCompression(t *testing.T) {
	srv := newTestServer(t)
	f := NewTransport(DefaultConfig())

	tests := []struct {
		path string
		want string
	}{
		{"/gzip", "gzipped body"},
		{"/br", "brotli body"},
	}
	for _, tt := range tests {
		res, err := f.Fetch(context.Background(), srv.URL+tt.path, Options{Timeout: time.Second})
		if err != nil {
			t.Fatalf("Fetch(%s) error = %v", tt.path, err)
		}
		if string(res.Body) != tt.want {
			t.Errorf("Fetch(%s) body = %q, want %q", tt.path, res.Body, tt.want)
		}
	}
}

func TestStrategies_BodyLimit(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{"over limit", int64(len(latin1Page)) - 1, true},
		{"at limit", int64(len(latin1Page)), false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.MaxBodyBytes = tt.limit
		for _, f := range allStrategies(cfg) {
			t.Run(tt.name+"/"+string(f.Strategy()), func(t *testing.T) {
				res, err := f.Fetch(context.Background(), srv.URL+"/latin1", Options{Timeout: time.Second})
				if tt.wantErr {
					if !errors.Is(err, ErrBodyTooLarge) {
						t.Errorf("expected ErrBodyTooLarge, got %v (body %d bytes)", err, len(res.Body))
					}
					return
				}
				if err != nil {
					t.Fatalf("Fetch() error = %v", err)
				}
				if len(res.Body) != len(latin1Page) {
					t.Errorf("body = %d bytes, want %d", len(res.Body), len(latin1Page))
				}
			})
		}
	}
}

func TestStrategies_KeepDeclaredCharset(t *testing.T) {
	srv := newTestServer(t)

	for _, f := range allStrategies(DefaultConfig()) {
		t.Run(string(f.Strategy()), func(t *testing.T) {
			res, err := f.Fetch(context.Background(), srv.URL+"/latin1", Options{Timeout: time.Second})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if string(res.Body) != latin1Page {
				t.Errorf("body = %q, want the undecoded bytes %q", res.Body, latin1Page)
			}
			if res.ContentType != "text/html; charset=iso-8859-1" {
				t.Errorf("content type = %q", res.ContentType)
			}
		})
	}
}

// --- Cascade Tests ---

type stubFetcher struct {
	strategy Strategy
	err      error
	calls    int
	timeout  time.Duration
}

func (s *stubFetcher) Fetch(ctx context.Context, url string, opts Options) (Result, error) {
	s.calls++
	s.timeout = opts.Timeout
	if s.err != nil {
		return Result{URL: url}, s.err
	}
	return Result{URL: url, FinalURL: url, StatusCode: 200, Body: []byte("ok"), Strategy: s.strategy}, nil
}

func (s *stubFetcher) Strategy() Strategy { return s.strategy }

func TestCascade_FirstSuccessWins(t *testing.T) {
	first := &stubFetcher{strategy: StrategyColly, err: errors.New("tls handshake")}
	second := &stubFetcher{strategy: StrategyTransport}
	third := &stubFetcher{strategy: StrategyStdlib}

	c := NewCascade(first, second, third)
	res, err := c.Fetch(context.Background(), "https://example.com/", Options{Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Strategy != StrategyTransport {
		t.Errorf("expected transport strategy, got %q", res.Strategy)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 0 {
		t.Errorf("unexpected calls: %d %d %d", first.calls, second.calls, third.calls)
	}
	if first.timeout != 3*time.Second || second.timeout != 3*time.Second {
		t.Errorf("each strategy should get the full timeout, got %v and %v", first.timeout, second.timeout)
	}
}

func TestCascade_AllFail(t *testing.T) {
	c := NewCascade(
		&stubFetcher{strategy: StrategyColly, err: &StatusError{URL: "u", StatusCode: 503}},
		&stubFetcher{strategy: StrategyTransport, err: errors.New("connection refused")},
		&stubFetcher{strategy: StrategyStdlib, err: &StatusError{URL: "u", StatusCode: 500}},
	)

	_, err := c.Fetch(context.Background(), "https://example.com/", Options{})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if len(fe.Attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(fe.Attempts))
	}
	if fe.StatusCode() != 500 {
		t.Errorf("expected last status 500, got %d", fe.StatusCode())
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Error("FetchError should unwrap to StatusError")
	}
}

func TestCascade_CancelledContext(t *testing.T) {
	first := &stubFetcher{strategy: StrategyColly}
	c := NewCascade(first)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "https://example.com/", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if first.calls != 0 {
		t.Error("no strategy should run after cancellation")
	}
}

func TestCascade_Empty(t *testing.T) {
	_, err := NewCascade().Fetch(context.Background(), "https://example.com/", Options{})
	if !errors.Is(err, ErrNoStrategies) {
		t.Errorf("expected ErrNoStrategies, got %v", err)
	}
}

func TestCascade_PerAttemptTimeout(t *testing.T) {
	srv := newTestServer(t)

	c := NewDefault(DefaultConfig())
	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL+"/slow", Options{Timeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("timeouts should bound each attempt, took %v", elapsed)
	}
}

func TestNewDefault_Order(t *testing.T) {
	got := NewDefault(DefaultConfig()).Strategies()
	want := []Strategy{StrategyColly, StrategyTransport, StrategyStdlib}
	if len(got) != len(want) {
		t.Fatalf("expected %d strategies, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("strategy %d = %q, want %q", i, got[i], want[i])
		}
	}
}
