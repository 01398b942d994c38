// Package server assembles the HTTP surface: routes, the auth middleware on
// protected paths and the rate limiter on the credential endpoints.
package server

import (
	"net/http"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/diewo77/go-prescriptions/internal/auth"
	"github.com/diewo77/go-prescriptions/internal/handlers"
	"github.com/diewo77/go-prescriptions/internal/httpx"
	"github.com/diewo77/go-prescriptions/internal/middleware"
	"github.com/diewo77/go-prescriptions/internal/services"
	"github.com/diewo77/go-prescriptions/internal/token"
)

// Deps carries everything the router needs.
type Deps struct {
	DB            *gorm.DB
	Tokens        *token.Service
	Auth          *services.AuthService
	Prescriptions *services.PrescriptionService
	Directory     *services.DirectoryService
	Users         *services.UserService
}

// New builds the full request handler.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	authH := handlers.NewAuthHandler(d.Auth)
	prescH := handlers.NewPrescriptionHandler(d.Prescriptions)
	dirH := handlers.NewDirectoryHandler(d.Directory)
	userH := handlers.NewUserHandler(d.Users)

	protect := auth.Middleware(d.Tokens)
	// 5 req/s with a burst of 10 per IP on the credential endpoints
	limiter := middleware.NewIPRateLimiter(rate.Limit(5), 10)

	guard := func(h http.HandlerFunc) http.Handler { return protect(h) }
	throttle := func(h http.HandlerFunc) http.Handler { return limiter.Handler(h) }

	// health
	mux.HandleFunc("GET /health", health(d.DB))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// auth
	mux.Handle("POST /auth/register", throttle(authH.Register))
	mux.Handle("POST /auth/login", throttle(authH.Login))
	mux.Handle("POST /auth/refresh", throttle(authH.Refresh))
	mux.Handle("POST /auth/logout", guard(authH.Logout))
	mux.Handle("GET /auth/profile", guard(authH.Profile))

	// prescriptions
	mux.Handle("POST /prescriptions", guard(prescH.Create))
	mux.Handle("POST /prescriptions/from-audio", guard(prescH.CreateFromAudio))
	mux.Handle("GET /prescriptions", guard(prescH.ListAuthored))
	mux.Handle("GET /prescriptions/admin", guard(prescH.ListAll))
	mux.Handle("GET /prescriptions/me", guard(prescH.ListMine))
	mux.Handle("GET /prescriptions/{id}", guard(prescH.Get))
	mux.Handle("PUT /prescriptions/{id}/consume", guard(prescH.Consume))
	mux.Handle("GET /prescriptions/{id}/pdf", guard(prescH.Download))

	// directory
	mux.Handle("GET /doctors", guard(dirH.Doctors))
	mux.Handle("GET /patients", guard(dirH.Patients))

	// admin user maintenance
	mux.Handle("POST /admin/users", guard(userH.Create))
	mux.Handle("GET /admin/users", guard(userH.List))
	mux.Handle("GET /admin/users/{id}", guard(userH.Get))
	mux.Handle("PUT /admin/users/{id}", guard(userH.Update))
	mux.Handle("DELETE /admin/users/{id}", guard(userH.Delete))

	return middleware.RequestLog(mux)
}

// health reports liveness plus store reachability.
func health(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "database": "ok"}
		code := http.StatusOK
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, r, code, status)
	}
}
