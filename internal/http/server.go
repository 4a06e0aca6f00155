package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"campusboard/internal/auth"
	"campusboard/internal/config"
	"campusboard/internal/crypto"
	"campusboard/internal/repository"
)

type Server struct {
	cfg      config.Config
	store    *repository.Store
	redis    *redis.Client
	validate *validator.Validate
}

// NewServer wires the handler set. redisClient may be nil; token
// revocation is then disabled and logout only revokes refresh sessions.
func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		redis:    redisClient,
		validate: validator.New(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.With(s.authMiddleware).Post("/logout", s.handleLogout)
	})

	r.Route("/api/students", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireRole("admin", "teacher")).Get("/", s.handleListStudents)
		r.With(s.requireRole("admin", "teacher")).Get("/{studentID}", s.handleGetStudent)
		r.With(s.requireRole("admin")).Post("/", s.handleCreateStudent)
		r.With(s.requireRole("admin")).Put("/{studentID}", s.handleUpdateStudent)
		r.With(s.requireRole("admin")).Delete("/{studentID}", s.handleDeleteStudent)
	})

	return r
}

// Auth

type claimsKey struct{}

// A missing bearer token is 401; a present but unverifiable token is
// 403. Clients depend on that split.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusForbidden, "invalid or expired token")
			return
		}

		if s.revoked(r.Context(), token) {
			writeError(w, http.StatusForbidden, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil || claims.Role == "" {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) revoked(ctx context.Context, token string) bool {
	if s.redis == nil {
		return false
	}
	hit, err := s.redis.Exists(ctx, denylistKey(token)).Result()
	return err == nil && hit > 0
}

func (s *Server) denylist(ctx context.Context, token string, until time.Time) {
	if s.redis == nil {
		return
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return
	}
	_ = s.redis.Set(ctx, denylistKey(token), "1", ttl).Err()
}

func denylistKey(token string) string {
	return "denylist:" + crypto.HashToken(token)
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
