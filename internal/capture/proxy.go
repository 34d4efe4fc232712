package capture

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/firescope/internal/models"
)

// TabHeader carries the tab context of proxied traffic. It is stripped
// before the request is forwarded.
const TabHeader = "X-FireScope-Tab"

// DefaultUpstream is the Firestore API origin
const DefaultUpstream = "https://firestore.googleapis.com"

// Proxy is a reverse proxy in front of the database API that reports every
// forwarded request to a Recorder
type Proxy struct {
	upstream *url.URL
	recorder Recorder
	proxy    *httputil.ReverseProxy
	logger   *slog.Logger
	now      func() time.Time
}

// NewProxy creates a capturing proxy forwarding to upstream
func NewProxy(upstream string, recorder Recorder, logger *slog.Logger) (*Proxy, error) {
	if upstream == "" {
		upstream = DefaultUpstream
	}
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", upstream)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Proxy{
		upstream: target,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
	p.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Del(TabHeader)
		},
		// Listen channels stream their responses
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Warn("upstream request failed", "url", r.URL.String(), "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return p, nil
}

// ServeHTTP forwards the request, reporting its start before forwarding and
// its completion once the response has been written
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	requestID := uuid.New().String()
	call := NewCall(requestID, p.upstreamURL(r), r.Method, r.Header.Get(TabHeader), r.Header.Get("Content-Type"), body)
	buffered := p.recorder.Observe(call)

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	p.proxy.ServeHTTP(sw, r)

	if buffered == 0 {
		return
	}
	p.recorder.Complete(models.CompletionSignal{
		RequestID:  requestID,
		StatusCode: sw.status,
		Method:     call.Method,
		EndedAt:    p.now(),
	})
}

// upstreamURL is the URL the request is forwarded to
func (p *Proxy) upstreamURL(r *http.Request) string {
	u := *p.upstream
	u.Path = singleJoin(p.upstream.Path, r.URL.Path)
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	return u.String()
}

func singleJoin(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case b == "":
		return a
	case a[len(a)-1] == '/' && b[0] == '/':
		return a + b[1:]
	case a[len(a)-1] != '/' && b[0] != '/':
		return a + "/" + b
	}
	return a + b
}

// statusWriter records the status code written through it
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush forwards streaming flushes
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
