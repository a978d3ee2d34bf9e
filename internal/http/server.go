// Package http exposes the REST API: session-cookie auth, transaction
// and reference-data CRUD, lending and savings views, and JSON
// export/import.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"tally/internal/config"
	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

type contextKey string

const userContextKey contextKey = "user"

// sessionCookie is the name of the auth cookie issued at login.
const sessionCookie = "session_id"

type Server struct {
	httpServer *http.Server
	repo       *storage.Repository
	cfg        *config.Config
	logger     *applog.Logger
	limiter    *rateLimiter
}

func NewServer(cfg *config.Config, repo *storage.Repository, logger *applog.Logger) *Server {
	s := &Server{
		repo:    repo,
		cfg:     cfg,
		logger:  logger.WithComponent(applog.ComponentHTTP),
		limiter: newRateLimiter(60, time.Minute),
	}

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        s.routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(applog.RequestLogger(s.logger))
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.rateLimit)

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.With(s.requireSession).Post("/change-pin", s.handleChangePIN)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/me", s.handleMe)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/summary", s.handleSummary)
			r.Get("/insights", s.handleInsights)
			r.Post("/reorder", s.handleReorder)
			r.Get("/{id}/details", s.handleTransactionDetails)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/categories", s.refRoutes(storage.RefCategories))
		r.Route("/groups", s.refRoutes(storage.RefGroups))
		r.Route("/payment-methods", s.refRoutes(storage.RefPaymentMethods))
		r.Route("/income-sources", s.refRoutes(storage.RefIncomeSources))

		r.Route("/lending", func(r chi.Router) {
			r.Get("/", s.handleListLendingSources)
			r.Post("/", s.handleCreateLendingSource)
			r.Put("/{id}", s.handleUpdateLendingSource)
			r.Delete("/{id}", s.handleArchiveLendingSource)
			r.Get("/{id}/repayments", s.handleLendingRepayments)
		})

		r.Route("/savings", func(r chi.Router) {
			r.Get("/", s.handleListSavingsAccounts)
			r.Post("/", s.handleCreateSavingsAccount)
			r.Patch("/{id}", s.handleUpdateSavingsAccount)
			r.Delete("/{id}", s.handleArchiveSavingsAccount)
			r.Post("/{id}/deposit", s.handleSavingsDeposit)
			r.Post("/{id}/withdraw", s.handleSavingsWithdraw)
			r.Get("/{id}/transactions", s.handleSavingsTransactions)
			r.Patch("/transactions/{txID}", s.handleUpdateSavingsTransaction)
			r.Delete("/transactions/{txID}", s.handleDeleteSavingsTransaction)
		})

		r.Route("/data", func(r chi.Router) {
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unhealthy", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requireSession resolves the session cookie to a user and stores it in
// the request context. Expired or unknown sessions get the cookie
// cleared alongside the 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}

		user, err := s.repo.GetSessionUser(r.Context(), cookie.Value)
		if err != nil {
			s.clearSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) core.User {
	user, _ := r.Context().Value(userContextKey).(core.User)
	return user
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   s.cfg.SessionDays * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
