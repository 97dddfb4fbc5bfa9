package main

import (
	"context"
	"net/http"
	"os"

	// Autoloads .env file to supply environment variables
	_ "github.com/joho/godotenv/autoload"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lildude/stravasync/internal/cache"
	"github.com/lildude/stravasync/internal/database"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/handlers/activities"
	"github.com/lildude/stravasync/internal/handlers/auth"
	"github.com/lildude/stravasync/internal/handlers/config"
	"github.com/lildude/stravasync/internal/handlers/respond"
	syncapi "github.com/lildude/stravasync/internal/handlers/sync"
	"github.com/lildude/stravasync/internal/handlers/users"
	"github.com/lildude/stravasync/internal/invalidate"
	"github.com/lildude/stravasync/internal/logger"
	"github.com/lildude/stravasync/internal/policy"
	"github.com/lildude/stravasync/internal/syncer"
)

func main() {
	log := logger.NewLogger()

	db, err := database.InitDB()
	if err != nil {
		log.WithError(err).Fatal("unable to connect to database")
	}

	che, err := cache.NewRedisCache(context.Background(), os.Getenv("REDIS_URL"))
	if err != nil {
		log.WithError(err).Fatal("unable to connect to redis")
	}

	port := "8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		port = val
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	sy := syncer.New(db, log, invalidate.NewNotifier(che, log))

	configH := &config.Handler{DB: db, Log: log}
	authH := &auth.Handler{DB: db, Cache: che, Log: log, BaseURL: baseURL}
	usersH := &users.Handler{DB: db, Log: log}
	activitiesH := &activities.Handler{DB: db, Cache: che, Log: log}
	syncH := &syncapi.Handler{DB: db, Syncer: sy, Policy: policy.FromEnv(), Log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, errs.New(errs.KindNotFound, "API endpoint not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, errs.New(errs.KindMethodNotAllowed, "method not allowed"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/config", configH.Save)
		r.Get("/auth/login", authH.Login)
		r.Get("/auth/callback", authH.Callback)

		r.Get("/users", usersH.List)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", usersH.Get)
			r.Patch("/config", usersH.UpdateConfig)
			r.Post("/sync", syncH.Page)
			r.Post("/streams", syncH.Streams)
			r.Get("/activities", activitiesH.ListForUser)
			r.Delete("/activities", activitiesH.DeleteAllForUser)
		})

		r.Get("/activities/{id}", activitiesH.Get)
		r.Delete("/activities/{id}", activitiesH.Delete)
	})

	log.Infoln("Starting server on port", port)
	log.Fatal(http.ListenAndServe(":"+port, r)) //#nosec: G114
}
