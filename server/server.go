package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
	"github.com/tebben/riool/api/handlers"
	"github.com/tebben/riool/api/middleware"
	"github.com/tebben/riool/database"
	"github.com/tebben/riool/settings"
)

// Start runs the riool server until a stop signal is received.
// tasksRunning reports the state of the background task router on /status.
func Start(config settings.Config, svc handlers.Service, tasksRunning func() bool) {
	router := CreateRouter(config, svc, tasksRunning)
	server := &http.Server{Addr: fmt.Sprintf(":%v", config.Server.Port), Handler: router}
	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		log.Info("Stop signal received, shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 5*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}

		log.Info("Server stopped successfully")
		serverStopCtx()
	}()

	log.Infof("Riool started, running on port %v", config.Server.Port)
	defer database.CloseDBPools()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}

	<-serverCtx.Done()
}

// CreateRouter sets up middleware, the huma API and the routes that serve
// files, images and tiles.
func CreateRouter(config settings.Config, svc handlers.Service, tasksRunning func() bool) http.Handler {
	router := chi.NewMux()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.Logger("router", log.StandardLogger(), logrus.DebugLevel))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Throttle(config.Server.MaxConcurrentRequests))
	router.Use(chimiddleware.Timeout(time.Duration(config.Server.Timeout) * time.Second))
	router.Use(chimiddleware.Compress(5, "application/json", "application/geo+json", "text/plain"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.Server.CORS.AllowOrigins,
		AllowedMethods:   config.Server.CORS.AllowMethods,
		AllowedHeaders:   config.Server.CORS.AllowHeaders,
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           600,
	}))
	router.NotFound(handlers.NotFoundHandler)

	api := humachi.New(router, createHumaConfig())
	registerRoutes(api, svc, tasksRunning)
	registerRawRoutes(router, svc)

	return router
}

func createHumaConfig() huma.Config {
	humaConfig := huma.DefaultConfig("Riool", "1.0.0")
	humaConfig.CreateHooks = nil
	humaConfig.Info.Description = "Riool stores sewer inspection surveys (SUFRIB RIB/RMB files) in PostGIS, " +
		"computes the lost capacity of every measurement and serves map layers, side profiles, " +
		"shortest paths between manholes and SUFRIB result files."
	humaConfig.Info.License = &huma.License{
		Name: "MIT",
	}

	return humaConfig
}

func registerRoutes(api huma.API, svc handlers.Service, tasksRunning func() bool) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Status",
		Description: "Get the status of the riool server.",
	}, handlers.StatusHandler(time.Now(), tasksRunning))

	huma.Register(api, huma.Operation{
		OperationID: "uploads",
		Method:      http.MethodGet,
		Path:        "/uploads",
		Summary:     "Uploads",
		Description: "List the uploaded survey files, newest first, with their processing status.",
	}, handlers.UploadsHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "upload-errors",
		Method:      http.MethodGet,
		Path:        "/uploads/{id}/errors",
		Summary:     "Upload errors",
		Description: "The errors found in an uploaded file, with the lines of the file when errors refer to them.",
	}, handlers.UploadErrorsHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID:   "delete-upload",
		Method:        http.MethodDelete,
		Path:          "/uploads/{id}",
		Summary:       "Delete upload",
		Description:   "Delete an upload with its sewerage, flood percentages and file.",
		DefaultStatus: http.StatusOK,
	}, handlers.DeleteUploadHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "upload-extent",
		Method:      http.MethodGet,
		Path:        "/uploads/{id}/extent",
		Summary:     "Upload extent",
		Description: "Bounds of the manholes of an upload in EPSG:3857.",
	}, handlers.ExtentHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "side-profile-files",
		Method:      http.MethodGet,
		Path:        "/side-profile/files",
		Summary:     "Side profile files",
		Description: "RMB uploads that can be shown as side profile. Missing flood percentages are computed in the background.",
	}, handlers.SideProfileFilesHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "sewerages",
		Method:      http.MethodGet,
		Path:        "/sewerages",
		Summary:     "Sewerages",
		Description: "Active sewerages ordered by name.",
	}, handlers.SeweragesHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "nearest-manhole",
		Method:      http.MethodGet,
		Path:        "/manholes/nearest",
		Summary:     "Nearest manhole",
		Description: "Find the manhole closest to a point within a radius.",
	}, handlers.NearestManholeHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "search-manholes",
		Method:      http.MethodGet,
		Path:        "/manholes/search",
		Summary:     "Search manholes",
		Description: "Look up manhole codes of a sewerage by prefix, or fuzzy to allow typing errors.",
	}, handlers.SearchManholesHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "path",
		Method:      http.MethodGet,
		Path:        "/path",
		Summary:     "Path finder",
		Description: "Shortest path between two manholes of a sewerage. An empty path is returned when there is none.",
	}, handlers.PathHandler(svc))

	huma.Register(api, huma.Operation{
		OperationID: "classes",
		Method:      http.MethodGet,
		Path:        "/layers/classes",
		Summary:     "Flood classes",
		Description: "Legend of the flood percentage layer.",
	}, handlers.ClassesHandler(svc))
}

// registerRawRoutes adds the routes that do not answer plain JSON.
func registerRawRoutes(router chi.Router, svc handlers.Service) {
	router.Post("/upload", handlers.UploadHandler(svc))
	router.Get("/uploads/{id}/results", handlers.ResultsHandler(svc))
	router.Get("/uploads/{id}/percentages.geojson", handlers.PercentagesHandler(svc))
	router.Post("/side-profile/popup", handlers.SideProfilePopupHandler(svc))
	router.Get("/side-profile.png", handlers.SideProfileImageHandler(svc))
	router.Get("/sewerages/{id}/manholes.geojson", handlers.ManholesHandler(svc))
	router.Get("/sewerages/{id}/sewers.geojson", handlers.SewersHandler(svc))
	router.Get("/tiles/{layer}/{z}/{x}/{y}.mvt", handlers.TileHandler(svc))
	router.Handle("/metrics", promhttp.Handler())
}
