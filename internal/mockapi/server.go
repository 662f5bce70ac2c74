// Package mockapi is a development stand-in for the storefront admin API. It
// serves the REST format the restapi client speaks, authenticates with
// HS256 JWTs, and stores records in the sqlite engine.
package mockapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Defaults applied by New.
const (
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "shelf-mock"
)

// Store is the record storage the server exposes. *sqlite.Backend satisfies it.
type Store interface {
	types.Backend
	Has(resource string) bool
}

// Config holds the credentials the server accepts and how it signs tokens.
type Config struct {
	AdminEmail    string
	AdminPassword string
	Secret        string
	TokenTTL      time.Duration
}

// Config errors returned by New.
var (
	ErrNoSecret      = errors.New("mockapi: signing secret must not be empty")
	ErrNoCredentials = errors.New("mockapi: admin email and password must be set")
)

// Server is the development REST backend.
type Server struct {
	store   Store
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics replaces the server's metrics, for sharing a registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a server over store.
func New(store Store, cfg Config, opts ...Option) (*Server, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil, ErrNoCredentials
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	s := &Server{
		store:  store,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s, nil
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/user/login", s.login)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/{resource}", s.list)
			r.Post("/{resource}", s.create)
			r.Put("/{resource}/{id}", s.update)
			r.Delete("/{resource}/{id}", s.remove)
		})
	})
	return r
}

// Issue signs a token for email.
func (s *Server) Issue(email string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !equal(req.Email, s.cfg.AdminEmail) || !equal(req.Password, s.cfg.AdminPassword) {
		s.logger.Info("login rejected", zap.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, expires, err := s.Issue(req.Email)
	if err != nil {
		s.logger.Error("issuing token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"_token":   token,
		"_message": "Login successful",
		"_data":    map[string]any{"email": req.Email, "expires_at": expires.UTC().Format(time.RFC3339)},
	})
}

type subjectKey struct{}

// authenticate rejects requests without a valid bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return []byte(s.cfg.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
		if err != nil {
			s.logger.Debug("token rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if !s.store.Has(resource) {
		writeError(w, http.StatusNotFound, "Unknown resource "+resource)
		return
	}
	records, err := s.store.List(r.Context(), resource)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"_data": records})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	schema, fields, ok := s.decode(w, r)
	if !ok {
		return
	}
	if !schema.Creatable {
		writeError(w, http.StatusMethodNotAllowed, schema.Plural+" cannot be created")
		return
	}
	fields = schema.Normalize(fields)
	if err := schema.Validate(fields); err != nil {
		s.fail(w, err)
		return
	}
	rec, err := s.store.Create(r.Context(), schema.Name, fields)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("record created", zap.String("resource", schema.Name), zap.String("id", rec.ID(types.DefaultIDKey)), zap.Any("by", r.Context().Value(subjectKey{})))
	writeJSON(w, http.StatusCreated, map[string]any{"_data": rec, "_message": schema.Singular + " created successfully"})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	schema, fields, ok := s.decode(w, r)
	if !ok {
		return
	}
	if !schema.Editable {
		writeError(w, http.StatusMethodNotAllowed, schema.Plural+" cannot be edited")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := s.store.Update(r.Context(), schema.Name, id, schema.Normalize(fields))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"_data": rec, "_message": schema.Singular + " updated successfully"})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	schema, err := types.LookupSchema(resource)
	if err != nil || !s.store.Has(resource) {
		writeError(w, http.StatusNotFound, "Unknown resource "+resource)
		return
	}
	if !schema.Deletable {
		writeError(w, http.StatusMethodNotAllowed, schema.Plural+" cannot be deleted")
		return
	}
	if err := s.store.Delete(r.Context(), resource, chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"_message": schema.Singular + " deleted successfully"})
}

// decode resolves the resource schema and reads a JSON object body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (types.Schema, types.Record, bool) {
	resource := chi.URLParam(r, "resource")
	schema, err := types.LookupSchema(resource)
	if err != nil || !s.store.Has(resource) {
		writeError(w, http.StatusNotFound, "Unknown resource "+resource)
		return types.Schema{}, nil, false
	}
	var fields types.Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || fields == nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return types.Schema{}, nil, false
	}
	delete(fields, schema.Key())
	return schema, fields, true
}

// fail maps a storage or validation error to a response.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrUnknownResource):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"_message": message})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
