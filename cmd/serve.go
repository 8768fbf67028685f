package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead-matching API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Registry.Migrate(ctx); err != nil {
			return err
		}
		if err := env.Leads.Migrate(ctx); err != nil {
			return err
		}

		r := newRouter(env, cfg.Server.RateLimitPerSecond)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Periodically replay parked persists while the server runs.
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					env.Engine.ReplayDLQ(ctx)
				}
			}
		}()

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes over the wired backends. Lead submission
// sits behind the rate limiter; reads do not.
func newRouter(e *env, rateLimitPerSecond float64) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	api := newAPI(e)

	r.Get("/health", api.health)

	r.Group(func(r chi.Router) {
		if rateLimitPerSecond > 0 {
			limiter := rate.NewLimiter(rate.Limit(rateLimitPerSecond), int(rateLimitPerSecond)+1)
			r.Use(rateLimit(limiter))
		}
		r.Post("/api/leads", api.submitLead)
	})

	r.Get("/api/leads/{id}", api.getLead)
	r.Post("/api/professionals", api.registerProfessional)
	r.Patch("/api/professionals/{id}", api.updateProfessional)
	r.Get("/api/professionals/{id}", api.getProfessional)
	r.Get("/api/professionals/{id}/leads", api.professionalLeads)
	r.Get("/api/customers/leads", api.customerLeads)

	return r
}

// rateLimit rejects requests over the configured sustained rate with 429.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
