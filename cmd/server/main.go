package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/DENisProd/C0NSTRUCT0R/internal/ai"
	"github.com/DENisProd/C0NSTRUCT0R/internal/auth"
	"github.com/DENisProd/C0NSTRUCT0R/internal/collab"
	"github.com/DENisProd/C0NSTRUCT0R/internal/config"
	"github.com/DENisProd/C0NSTRUCT0R/internal/db"
	"github.com/DENisProd/C0NSTRUCT0R/internal/handlers"
	"github.com/DENisProd/C0NSTRUCT0R/internal/library"
	"github.com/DENisProd/C0NSTRUCT0R/internal/media"
	"github.com/DENisProd/C0NSTRUCT0R/internal/palette"
	"github.com/DENisProd/C0NSTRUCT0R/internal/projects"
	"github.com/DENisProd/C0NSTRUCT0R/internal/ratelimit"
	"github.com/DENisProd/C0NSTRUCT0R/internal/users"
)

type Server struct {
	authService *auth.Service
	corsOrigins []string

	health   *handlers.HealthHandler
	auth     *handlers.AuthHandler
	users    *handlers.UsersHandler
	projects *handlers.ProjectsHandler
	library  *handlers.LibraryHandler
	palette  *handlers.PaletteHandler
	media    *handlers.MediaHandler
	ai       *handlers.AIHandler
	ws       *handlers.WebsocketHandler
	rooms    *handlers.RoomsHandler
}

func main() {
	log.Println("[Server] Starting constructor backend...")

	// .env is optional, env vars win when both are set
	if err := godotenv.Load(); err == nil {
		log.Println("[Server] Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[Server] Failed to load configuration: %v", err)
	}

	// Initialize database
	database, err := db.NewDB(cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[Server] Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("[Server] Failed to run migrations: %v", err)
	}

	// Initialize services
	rateLimiter := ratelimit.NewLimiter(database.Redis)
	totp := auth.NewTOTP(database.Postgres, cfg.EnableTOTP, cfg.TOTPIssuer)
	authService := auth.NewService(database.Postgres, rateLimiter, cfg.JWTSecret, cfg.TokenLifetime, totp)
	projectsService := projects.NewService(database.Postgres)
	libraryService := library.NewService(database.Postgres)
	paletteService := palette.NewService(database.Postgres)
	usersService := users.NewService(database.Postgres)
	aiService := ai.NewService(cfg, database.Redis)

	mediaService, err := media.NewService(database.Postgres, cfg)
	if err != nil {
		log.Fatalf("[Server] Failed to initialize media storage: %v", err)
	}

	// Seed the block catalog and preset palettes
	if !cfg.SkipDataInit {
		seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := libraryService.SeedSystemBlocks(seedCtx); err != nil {
			log.Printf("[WARN] Failed to seed system blocks: %v", err)
		}
		if err := paletteService.SeedPresets(seedCtx); err != nil {
			log.Printf("[WARN] Failed to seed preset palettes: %v", err)
		}
		cancel()
	}

	// Collaboration rooms
	registry := collab.NewRegistry()
	go roomStatsLoop(registry)

	server := &Server{
		authService: authService,
		corsOrigins: cfg.CORSOrigins,

		health:   handlers.NewHealthHandler(database),
		auth:     handlers.NewAuthHandler(authService, totp),
		users:    handlers.NewUsersHandler(usersService, mediaService),
		projects: handlers.NewProjectsHandler(projectsService),
		library:  handlers.NewLibraryHandler(libraryService),
		palette:  handlers.NewPaletteHandler(paletteService),
		media:    handlers.NewMediaHandler(mediaService, projectsService),
		ai:       handlers.NewAIHandler(aiService),
		ws:       handlers.NewWebsocketHandler(registry),
		rooms:    handlers.NewRoomsHandler(registry),
	}

	router := server.setupRouter()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Server] HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("[Server] Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Server exited gracefully")
}

func (s *Server) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.corsMiddleware)

	// Handle OPTIONS preflight requests for all routes
	router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.HandleFunc("/", s.health.Root).Methods("GET")
	router.HandleFunc("/health", s.health.Health).Methods("GET")

	// Auth routes
	router.HandleFunc("/api/auth/register", s.auth.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", s.auth.Login).Methods("POST")
	router.Handle("/api/auth/change-password", s.protect(s.auth.ChangePassword)).Methods("POST")
	router.Handle("/api/auth/totp/setup", s.protect(s.auth.TOTPSetup)).Methods("POST")
	router.Handle("/api/auth/totp/verify", s.protect(s.auth.TOTPVerify)).Methods("POST")
	router.Handle("/api/auth/totp/disable", s.protect(s.auth.TOTPDisable)).Methods("POST")

	// User profile routes (protected)
	router.Handle("/api/user/me", s.protect(s.users.Me)).Methods("GET")
	router.Handle("/api/user/me", s.protect(s.users.UpdateMe)).Methods("PUT")
	router.Handle("/api/user/me/avatar", s.protect(s.users.UploadAvatar)).Methods("POST")

	// Project routes (protected)
	router.Handle("/api/projects", s.protect(s.projects.List)).Methods("GET")
	router.Handle("/api/projects", s.protect(s.projects.Create)).Methods("POST")
	// Registered before the {project_id} templates so "media" never
	// parses as a project id.
	router.Handle("/api/projects/media/by-etag/{etag}", s.protect(s.media.StreamByETag)).Methods("GET")
	router.Handle("/api/projects/{project_id}", s.protect(s.projects.Get)).Methods("GET")
	router.Handle("/api/projects/{project_id}", s.protect(s.projects.Update)).Methods("PUT")
	router.Handle("/api/projects/{project_id}", s.protect(s.projects.Delete)).Methods("DELETE")
	router.Handle("/api/projects/{project_id}/media", s.protect(s.media.Upload)).Methods("POST")
	router.Handle("/api/projects/{project_id}/media", s.protect(s.media.List)).Methods("GET")
	router.Handle("/api/projects/{project_id}/media/{media_id}", s.protect(s.media.Delete)).Methods("DELETE")

	// Block library routes (protected)
	router.Handle("/api/library/blocks", s.protect(s.library.Blocks)).Methods("GET")
	router.Handle("/api/library/ready", s.protect(s.library.Ready)).Methods("GET")
	router.Handle("/api/library/ready", s.protect(s.library.CreateReady)).Methods("POST")
	router.Handle("/api/library/upload", s.protect(s.library.Upload)).Methods("POST")
	router.Handle("/api/library/block/{block_id}", s.protect(s.library.Block)).Methods("GET")
	router.Handle("/api/library/block/{block_id}", s.protect(s.library.UpdateBlock)).Methods("PUT")
	router.Handle("/api/library/block/{block_id}", s.protect(s.library.DeleteBlock)).Methods("DELETE")

	// Saved user blocks (protected)
	router.Handle("/api/user-blocks", s.protect(s.library.UserBlocks)).Methods("GET")
	router.Handle("/api/user-blocks", s.protect(s.library.SaveUserBlock)).Methods("POST")
	router.Handle("/api/user-blocks/{block_id}", s.protect(s.library.DeleteUserBlock)).Methods("DELETE")

	// Palette routes (protected)
	router.Handle("/api/palette/apply", s.protect(s.palette.Apply)).Methods("POST")
	router.Handle("/api/palette/list", s.protect(s.palette.List)).Methods("GET")
	router.Handle("/api/palette/generate", s.protect(s.palette.Generate)).Methods("POST")
	router.Handle("/api/palette", s.protect(s.palette.Create)).Methods("POST")

	// AI generation
	router.Handle("/api/ai/generate-landing", s.protect(s.ai.GenerateLanding)).Methods("POST")
	router.HandleFunc("/api/ai/supported-blocks", s.ai.SupportedBlocks).Methods("GET")

	// Collaborative editing
	router.HandleFunc("/ws/rooms/{room_id}", s.ws.ServeWS).Methods("GET")
	router.HandleFunc("/api/rooms/{room_id}/info", s.rooms.Info).Methods("GET")

	return router
}

func (s *Server) protect(next http.HandlerFunc) http.Handler {
	return s.authService.Middleware(next)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// roomStatsLoop logs room occupancy so abandoned rooms are visible in
// the logs.
func roomStatsLoop(registry *collab.Registry) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		total, empty := registry.Stats()
		if total > 0 {
			log.Printf("[INFO] Collaboration rooms: %d total, %d empty", total, empty)
		}
	}
}
