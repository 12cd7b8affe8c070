package static

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dreschagin/static-server/internal/headers"
	staticmetrics "github.com/dreschagin/static-server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtures = map[string]string{
	"index.html":       "<!doctype html><title>synth</title>",
	"app.js":           "console.log('app');",
	"style.css":        "body { margin: 0; }",
	"data.json":        `{"ok":true}`,
	"img/logo.png":     "\x89PNG\r\n\x1a\n",
	"img/photo.jpg":    "\xff\xd8\xff\xe0",
	"img/anim.gif":     "GIF89a",
	"img/icon.svg":     "<svg xmlns=\"http://www.w3.org/2000/svg\"/>",
	"favicon.ico":      "\x00\x00\x01\x00",
	"worklet.wasm":     "\x00asm\x01\x00\x00\x00",
	"nested/deep.html": "<p>deep</p>",
}

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range fixtures {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return root
}

func newTestResponder(t *testing.T, root string, metrics *staticmetrics.Metrics) *Responder {
	t.Helper()
	h, err := New(Options{
		Root:           root,
		IndexFile:      "index.html",
		DiagnosticPath: "/test-headers",
		Headers:        headers.Isolation(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func assertIsolationHeaders(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "same-origin", h.Get("Cross-Origin-Opener-Policy"))
	assert.Equal(t, "credentialless", h.Get("Cross-Origin-Embedder-Policy"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(Options{Root: t.TempDir(), Headers: headers.Isolation()})
	assert.Error(t, err)
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(Options{
		Root:    filepath.Join(t.TempDir(), "missing"),
		Headers: headers.Isolation(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	assert.Error(t, err)
}

func TestContentTypes(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	tests := []struct {
		path        string
		contentType string
	}{
		{path: "/index.html", contentType: "text/html"},
		{path: "/app.js", contentType: "application/javascript"},
		{path: "/style.css", contentType: "text/css"},
		{path: "/data.json", contentType: "application/json"},
		{path: "/img/logo.png", contentType: "image/png"},
		{path: "/img/photo.jpg", contentType: "image/jpeg"},
		{path: "/img/anim.gif", contentType: "image/gif"},
		{path: "/img/icon.svg", contentType: "image/svg+xml"},
		{path: "/favicon.ico", contentType: "image/x-icon"},
		{path: "/worklet.wasm", contentType: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := serve(h, tt.path)

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.contentType, rr.Header().Get("Content-Type"))
			assert.Equal(t, fixtures[strings.TrimPrefix(tt.path, "/")], rr.Body.String())
			assertIsolationHeaders(t, rr.Header())
		})
	}
}

func TestDiagnosticEndpoint(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(method, "/test-headers", nil))

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assertIsolationHeaders(t, rr.Header())

			var body struct {
				Message string            `json:"message"`
				Headers map[string]string `json:"headers"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "Headers are being sent!", body.Message)
			assert.Equal(t, map[string]string{
				"Cross-Origin-Opener-Policy":   "same-origin",
				"Cross-Origin-Embedder-Policy": "credentialless",
				"Cache-Control":                "no-cache, no-store, must-revalidate",
				"Pragma":                       "no-cache",
				"Expires":                      "0",
			}, body.Headers)
		})
	}
}

func TestDiagnosticBodyIsIndented(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	rr := serve(h, "/test-headers")

	assert.True(t, strings.HasPrefix(rr.Body.String(), "{\n  \"message\": \"Headers are being sent!\",\n  \"headers\": {\n    \"Cross-Origin-Opener-Policy\""))
}

func TestRootServesIndex(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	root := serve(h, "/")
	index := serve(h, "/index.html")

	require.Equal(t, http.StatusOK, root.Code)
	assert.Equal(t, index.Code, root.Code)
	assert.Equal(t, index.Header(), root.Header())
	assert.Equal(t, index.Body.Bytes(), root.Body.Bytes())
}

func TestMissingFile(t *testing.T) {
	metrics := staticmetrics.New(prometheus.NewRegistry())
	h := newTestResponder(t, newTestRoot(t), metrics)

	rr := serve(h, "/missing-file.xyz")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "File not found", rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
	assertIsolationHeaders(t, rr.Header())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotFound))
}

func TestQueryStringIgnored(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	tests := []string{"/app.js?v=2", "/app.js?v=2&cache=bust", "/app.js%3Fv=2"}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rr := serve(h, target)

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/javascript", rr.Header().Get("Content-Type"))
			assert.Equal(t, fixtures["app.js"], rr.Body.String())
		})
	}
}

func TestRootWithQueryServesIndex(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	rr := serve(h, "/?reload=1")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, fixtures["index.html"], rr.Body.String())
}

func TestRepeatedRequestsAreIdentical(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	for _, target := range []string{"/", "/img/logo.png", "/test-headers", "/missing.txt"} {
		first := serve(h, target)
		second := serve(h, target)

		assert.Equal(t, first.Code, second.Code, target)
		assert.Equal(t, first.Header(), second.Header(), target)
		assert.Equal(t, first.Body.Bytes(), second.Body.Bytes(), target)
	}
}

func TestConcurrentRequests(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	names := make([]string, 0, len(fixtures))
	for name := range fixtures {
		names = append(names, name)
	}

	const rounds = 8
	var wg sync.WaitGroup
	errs := make(chan string, rounds*len(names))
	for i := 0; i < rounds; i++ {
		for _, name := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				resp, err := srv.Client().Get(srv.URL + "/" + name)
				if err != nil {
					errs <- name + ": " + err.Error()
					return
				}
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				if err != nil {
					errs <- name + ": " + err.Error()
					return
				}
				if resp.StatusCode != http.StatusOK || string(body) != fixtures[name] {
					errs <- name + ": unexpected response " + resp.Status
					return
				}
				if resp.Header.Get("Cross-Origin-Embedder-Policy") != "credentialless" {
					errs <- name + ": missing isolation headers"
				}
			}(name)
		}
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "site")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("top secret"), 0o644))

	metrics := staticmetrics.New(prometheus.NewRegistry())
	h := newTestResponder(t, root, metrics)

	for _, target := range []string{"/../secret.txt", "/%2e%2e/secret.txt", "/a/../../secret.txt"} {
		t.Run(target, func(t *testing.T) {
			rr := serve(h, target)

			assert.Equal(t, http.StatusForbidden, rr.Code)
			assert.Equal(t, "Forbidden", rr.Body.String())
			assert.NotContains(t, rr.Body.String(), "top secret")
			assertIsolationHeaders(t, rr.Header())
		})
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Forbidden))
}

func TestDotSegmentsInsideRoot(t *testing.T) {
	h := newTestResponder(t, newTestRoot(t), nil)

	rr := serve(h, "/nested/../app.js")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, fixtures["app.js"], rr.Body.String())
}
