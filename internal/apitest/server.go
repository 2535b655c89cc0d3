// Package apitest provides an in-process stub of the Apporte Delivery API
// for tests. Routes are registered with gorilla/mux under /api/v1 and
// answer with whatever the test configured; unconfigured routes answer 404.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// BasePath is the API prefix every route is mounted under.
const BasePath = "/api/v1"

// Route names.
const (
	RouteLogin          = "login"
	RouteVerify         = "2fa-verify"
	RouteLogout         = "logout"
	RouteMe             = "me"
	RouteForgotPassword = "forgot-password"
	RouteResetPassword  = "reset-password"
	RouteUsers          = "users"
	RouteRoles          = "roles"
	RouteSuspend        = "suspend"
	RouteActivate       = "activate"
)

// Request is a recorded call.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	Vars   map[string]string
	Body   []byte
}

// Decode unmarshals the recorded JSON body into v.
func (r Request) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Server is the stub API.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests map[string][]Request
}

// New starts a stub server bound to IPv4 loopback and closes it when the
// test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string][]Request),
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server: %v", err)
	}

	s.srv = &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: s.router()},
	}
	s.srv.Start()
	t.Cleanup(s.srv.Close)

	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix(BasePath).Subrouter()

	api.HandleFunc("/auth/login", s.serve(RouteLogin)).Methods(http.MethodPost)
	api.HandleFunc("/auth/2fa/verify", s.serve(RouteVerify)).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.serve(RouteLogout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.serve(RouteMe)).Methods(http.MethodGet)
	api.HandleFunc("/auth/forgot-password", s.serve(RouteForgotPassword)).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password", s.serve(RouteResetPassword)).Methods(http.MethodPost)
	api.HandleFunc("/admin/users", s.serve(RouteUsers)).Methods(http.MethodGet)
	api.HandleFunc("/admin/roles", s.serve(RouteRoles)).Methods(http.MethodGet)
	api.HandleFunc("/admin/users/{id:[0-9]+}/suspend", s.serve(RouteSuspend)).Methods(http.MethodPatch)
	api.HandleFunc("/admin/users/{id:[0-9]+}/activate", s.serve(RouteActivate)).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})

	return r
}

func (s *Server) serve(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		s.mu.Lock()
		s.requests[route] = append(s.requests[route], Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Query:  r.URL.Query(),
			Vars:   mux.Vars(r),
			Body:   body,
		})
		h := s.handlers[route]
		s.mu.Unlock()

		if h == nil {
			WriteJSON(w, http.StatusNotFound, map[string]string{"message": "route " + route + " not stubbed"})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		h(w, r)
	}
}

// URL is the API base URL to configure clients with.
func (s *Server) URL() string {
	return s.srv.URL + BasePath
}

// Respond makes route answer with status and body encoded as JSON. A nil
// body writes no payload.
func (s *Server) Respond(route string, status int, body any) {
	s.Handle(route, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// RespondRaw makes route answer with status and a literal body.
func (s *Server) RespondRaw(route string, status int, body string) {
	s.Handle(route, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// Handle installs a custom handler for route.
func (s *Server) Handle(route string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[route] = h
}

// Calls returns how many requests route received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests[route])
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, reqs := range s.requests {
		n += len(reqs)
	}
	return n
}

// Requests returns the recorded requests for route.
func (s *Server) Requests(route string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests[route]...)
}

// LastRequest returns the most recent request for route. ok is false when
// route was never called.
func (s *Server) LastRequest(route string) (req Request, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := s.requests[route]
	if len(reqs) == 0 {
		return Request{}, false
	}
	return reqs[len(reqs)-1], true
}

// WriteJSON writes body as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
