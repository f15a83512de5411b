package router

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method  string
	pattern string
	handler HandlerFunc
}

// Router matches exact paths first, then wildcard patterns in the order they
// were registered. A "*" segment matches one path segment; a trailing "*"
// matches the rest of the path.
type Router struct {
	logger    *slog.Logger
	routes    map[string]HandlerFunc // key = METHOD:PATH
	paths     map[string]bool
	wildcards []route
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger: logger,
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}
}

type paramsKey struct{}

// Params returns the path segments captured by the wildcards of the matched route
func Params(r *http.Request) []string {
	p, _ := r.Context().Value(paramsKey{}).([]string)
	return p
}

// Param returns the i-th captured segment or ""
func Param(r *http.Request, i int) string {
	p := Params(r)
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(lrw, req)
	} else if h, params, ok := r.matchWildcard(req.Method, req.URL.Path); ok {
		h(lrw, req.WithContext(context.WithValue(req.Context(), paramsKey{}, params)))
	} else if r.pathExists(req.URL.Path) {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	r.logger.Log(req.Context(), statusLevel(lrw.statusCode), "http request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", lrw.statusCode),
		slog.Duration("duration", time.Since(start)),
	)
}

func (r *Router) matchWildcard(method, path string) (HandlerFunc, []string, bool) {
	for _, rt := range r.wildcards {
		if rt.method != method {
			continue
		}
		if params, ok := matchWildcardRoute(path, rt.pattern); ok {
			return rt.handler, params, true
		}
	}
	return nil, nil, false
}

func (r *Router) pathExists(path string) bool {
	if r.paths[path] {
		return true
	}
	for _, rt := range r.wildcards {
		if _, ok := matchWildcardRoute(path, rt.pattern); ok {
			return true
		}
	}
	return false
}

// matchWildcardRoute checks if a request path matches a wildcard route
// pattern and returns the captured segments
func matchWildcardRoute(requestPath, routePattern string) ([]string, bool) {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")
	last := len(routeSegments) - 1

	if routeSegments[last] == "*" && strings.HasSuffix(routePattern, "/*") {
		// trailing wildcard takes everything left, possibly nothing
		if len(requestSegments) < last {
			return nil, false
		}
	} else if len(requestSegments) != len(routeSegments) {
		return nil, false
	}

	var params []string
	for i, seg := range routeSegments {
		switch {
		case seg == "*" && i == last && len(requestSegments) != len(routeSegments):
			params = append(params, strings.Join(requestSegments[i:], "/"))
		case seg == "*":
			if requestSegments[i] == "" && i != last {
				return nil, false
			}
			params = append(params, requestSegments[i])
		case i >= len(requestSegments) || requestSegments[i] != seg:
			return nil, false
		}
	}
	return params, true
}

func (r *Router) register(method, path string, handler HandlerFunc) {
	if strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, route{method: method, pattern: path, handler: handler})
		return
	}
	r.routes[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Handle mounts a plain http.Handler for GET requests
func (r *Router) Handle(path string, h http.Handler) { r.GET(path, h.ServeHTTP) }

// Server returns an http.Server serving the router on addr
func (r *Router) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// loggingResponseWriter captures status codes
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers push partial responses
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter { return lrw.ResponseWriter }

func statusLevel(code int) slog.Level {
	switch {
	case code >= 500:
		return slog.LevelError
	case code >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
