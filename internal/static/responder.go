package static

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/dreschagin/static-server/internal/headers"
	staticmetrics "github.com/dreschagin/static-server/internal/metrics"
	"github.com/dreschagin/static-server/internal/mimetype"
	"github.com/dreschagin/static-server/internal/routing"
)

const (
	requestIDHeader = "X-Request-Id"

	diagnosticMessage = "Headers are being sent!"
	notFoundBody      = "File not found"
	forbiddenBody     = "Forbidden"
	serverErrorPrefix = "Server error: "
)

// Options configures a Responder.
type Options struct {
	// Root is the directory files are served from.
	Root string
	// IndexFile substitutes for a request to "/".
	IndexFile string
	// DiagnosticPath echoes the header set as JSON instead of serving a file.
	DiagnosticPath string
	Headers        headers.Set
	Logger         *slog.Logger
	// Metrics is optional.
	Metrics *staticmetrics.Metrics
}

// Responder maps request paths to files under a root directory and attaches
// a fixed header set to every response.
type Responder struct {
	root           *os.Root
	rootPath       string
	indexFile      string
	diagnosticPath string
	headers        headers.Set
	diagnostic     []byte
	escapeErr      error
	logger         *slog.Logger
	metrics        *staticmetrics.Metrics
}

type diagnosticPayload struct {
	Message string      `json:"message"`
	Headers headers.Set `json:"headers"`
}

// New opens opts.Root and prepares the diagnostic payload. The returned
// Responder must be closed to release the directory handle.
func New(opts Options) (*Responder, error) {
	if opts.Logger == nil {
		return nil, errors.New("static: logger is required")
	}
	if opts.IndexFile == "" {
		opts.IndexFile = "index.html"
	}
	if opts.DiagnosticPath == "" {
		opts.DiagnosticPath = "/test-headers"
	}

	root, err := os.OpenRoot(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("open root directory: %w", err)
	}

	payload, err := json.MarshalIndent(diagnosticPayload{
		Message: diagnosticMessage,
		Headers: opts.Headers,
	}, "", "  ")
	if err != nil {
		_ = root.Close()
		return nil, fmt.Errorf("encode diagnostic payload: %w", err)
	}

	return &Responder{
		root:           root,
		rootPath:       opts.Root,
		indexFile:      opts.IndexFile,
		diagnosticPath: opts.DiagnosticPath,
		headers:        opts.Headers,
		diagnostic:     payload,
		escapeErr:      rootEscapeError(root),
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}, nil
}

// Close releases the root directory handle.
func (h *Responder) Close() error {
	return h.root.Close()
}

func (h *Responder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(requestIDHeader)
	h.logger.Info("request received",
		"method", r.Method,
		"path", r.URL.RequestURI(),
		"request_id", requestID,
	)

	h.headers.Apply(w.Header())

	route := routing.Classify(r.URL.Path, h.diagnosticPath)
	if route == routing.RouteDiagnostic {
		h.serveDiagnostic(w)
		return
	}

	requestPath := r.URL.Path
	if route == routing.RouteIndex {
		requestPath = "/" + h.indexFile
	}

	name, err := resolve(requestPath)
	if err != nil {
		h.forbid(w, requestPath, requestID)
		return
	}

	h.serveFile(w, name, requestID)
}

func (h *Responder) serveDiagnostic(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(h.diagnostic)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.diagnostic)
}

func (h *Responder) serveFile(w http.ResponseWriter, name, requestID string) {
	content, err := h.readFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if h.metrics != nil {
				h.metrics.NotFound.Inc()
			}
			h.logger.Info("file not found",
				"status", http.StatusNotFound,
				"path", displayPath(h.rootPath, name),
				"request_id", requestID,
			)
			writePlain(w, http.StatusNotFound, notFoundBody)
			return
		}
		if h.escapeErr != nil && errors.Is(err, h.escapeErr) {
			h.forbid(w, "/"+name, requestID)
			return
		}

		code := errorCode(err)
		if h.metrics != nil {
			h.metrics.ReadErrors.WithLabelValues(code).Inc()
		}
		h.logger.Error("file read failed",
			"status", http.StatusInternalServerError,
			"code", code,
			"error", err,
			"request_id", requestID,
		)
		writePlain(w, http.StatusInternalServerError, serverErrorPrefix+code)
		return
	}

	contentType := mimetype.ForPath(name)
	if h.metrics != nil {
		h.metrics.ServedBytes.WithLabelValues(contentType).Add(float64(len(content)))
	}
	h.logger.Info("file served",
		"status", http.StatusOK,
		"content_type", contentType,
		"coop", h.headers.Get(headers.OpenerPolicy),
		"coep", h.headers.Get(headers.EmbedderPolicy),
		"request_id", requestID,
	)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Responder) forbid(w http.ResponseWriter, requestPath, requestID string) {
	if h.metrics != nil {
		h.metrics.Forbidden.Inc()
	}
	h.logger.Warn("request rejected",
		"status", http.StatusForbidden,
		"path", requestPath,
		"request_id", requestID,
	)
	writePlain(w, http.StatusForbidden, forbiddenBody)
}

func (h *Responder) readFile(name string) ([]byte, error) {
	f, err := h.root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// writePlain writes a minimal text body. Content-Type is suppressed rather
// than sniffed so error responses carry only the fixed header set.
func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header()["Content-Type"] = nil
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
