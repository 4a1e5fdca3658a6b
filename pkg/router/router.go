package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	segments []string // path split on "/", "*" matches one segment, trailing "*" matches the rest
	handler  HandlerFunc
}

// Router is a small wildcard router over net/http with request logging.
type Router struct {
	mux    *http.ServeMux
	routes []route
}

func New() *Router {
	r := &Router{mux: http.NewServeMux()}

	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler, pathKnown := r.match(req.Method, req.URL.Path)
		switch {
		case handler != nil:
			handler(lrw, req)
		case pathKnown:
			http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
		default:
			http.Error(lrw, "Not Found", http.StatusNotFound)
		}

		duration := time.Since(start)
		log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
			colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
			methodColor(req.Method), req.Method, colorReset,
			req.URL.Path,
			statusColor(lrw.statusCode), lrw.statusCode, colorReset,
			colorBlue, duration, colorReset,
		)
	})

	return r
}

// match finds a handler for method+path. The second return value
// reports whether any route matched the path regardless of method, so
// the caller can distinguish 404 from 405.
func (r *Router) match(method, path string) (HandlerFunc, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	pathKnown := false
	for _, rt := range r.routes {
		if !matchSegments(segments, rt.segments) {
			continue
		}
		pathKnown = true
		if rt.method == method {
			return rt.handler, true
		}
	}
	return nil, pathKnown
}

func matchSegments(got, want []string) bool {
	for i, seg := range want {
		// trailing wildcard swallows the remaining segments
		if seg == "*" && i == len(want)-1 {
			return len(got) >= len(want)
		}
		if i >= len(got) {
			return false
		}
		if seg != "*" && seg != got[i] {
			return false
		}
	}
	return len(got) == len(want)
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes = append(r.routes, route{
		method:   method,
		segments: strings.Split(strings.Trim(path, "/"), "/"),
		handler:  handler,
	})
}

func (r *Router) GET(path string, handler HandlerFunc)  { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)  { r.register(http.MethodPut, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Handler exposes the underlying mux, mainly for tests.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// --- Start server ---
func (r *Router) Start(addr string) {
	log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	log.Fatal(http.ListenAndServe(addr, r.mux))
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
