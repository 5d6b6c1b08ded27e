package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"slipway/auth"
	"slipway/config"
	"slipway/consul"
	"slipway/dispatch"
	"slipway/handler"
	"slipway/hub"
	"slipway/platform"
	"slipway/saga"
	"slipway/storage"
	"slipway/store"
)

var Version = "dev"

func main() {
	once := flag.Bool("once", false, "run a single dispatch from the environment and exit")
	flag.Parse()

	cfg := config.Load()

	if *once {
		os.Exit(runOnce(cfg))
	}

	// Database
	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("migration: %v", err)
	}

	if err := db.RecoverInFlightRuns(context.Background()); err != nil {
		log.Printf("WARNING: run recovery: %v", err)
	}

	// Nomad
	platformClient, err := platform.NewClient(platform.Config{Addr: cfg.NomadAddr, EvalTimeout: cfg.EvalTimeout})
	if err != nil {
		log.Fatalf("nomad: %v", err)
	}
	if err := platformClient.Healthy(); err != nil {
		log.Printf("WARNING: nomad not healthy (%v)", err)
	} else {
		log.Println("nomad connected at " + cfg.NomadAddr)
	}

	// Consul
	consulClient, err := consul.NewClient(cfg.ConsulAddr)
	if err != nil {
		log.Printf("WARNING: consul unavailable (%v)", err)
	} else {
		if err := consulClient.Healthy(); err != nil {
			log.Printf("WARNING: consul not healthy (%v)", err)
		} else {
			log.Println("consul connected at " + cfg.ConsulAddr)
		}
	}

	// S3
	var s3Client *storage.Client
	if cfg.S3Endpoint != "" {
		s3Client, err = storage.NewClient(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Printf("WARNING: S3 storage unavailable (%v)", err)
		} else {
			log.Println("S3 storage connected at " + cfg.S3Endpoint)
		}
	}

	// WebSocket hub
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	ws := hub.New(allowedOrigins)
	go ws.Run()

	// Saga store
	sagaStore := saga.NewPostgresStore(db.Pool)

	// Dispatcher
	dispatcher := &dispatch.Dispatcher{
		Platform:  platformClient,
		SagaStore: sagaStore,
		DB:        db,
		WS:        ws,
	}
	if s3Client != nil {
		dispatcher.Artifacts = s3Client
	}

	// Handler
	h := handler.New(db, platformClient, consulClient, ws, cfg, dispatcher, sagaStore, s3Client)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Slipway-Signature"},
		AllowCredentials: true,
	}))

	// JWT auth
	if cfg.JWTSecret != "" {
		validator := auth.NewValidator(cfg.JWTSecret, "slipway")
		r.Use(validator.Middleware)
		log.Println("JWT auth enabled")
	}

	// Bearer token auth
	if cfg.APIToken != "" {
		r.Use(bearerAuth(cfg.APIToken))
		log.Println("API token auth enabled")
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"version": Version})
		})

		r.Post("/webhooks/pipeline", h.Dispatch)

		r.Get("/stats", h.Stats)
		r.Get("/runs", h.ListRuns)
		r.Route("/runs/{id}", func(r chi.Router) {
			r.Use(handler.ValidateRunID)
			r.Get("/", h.GetRun)
			r.Get("/events", h.GetRunEvents)
		})
	})

	r.Get("/ws", ws.HandleConnect)

	srv := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("slipway %s listening on %s:%s", Version, cfg.BindAddr, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" || r.URL.Path == "/api/health" || r.URL.Path == "/api/version" || strings.HasPrefix(r.URL.Path, "/api/webhooks/") {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(auth[7:]), []byte(token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
