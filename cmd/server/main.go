package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/calejo/formgate/internal/auth"
	"github.com/calejo/formgate/internal/authz"
	"github.com/calejo/formgate/internal/config"
	"github.com/calejo/formgate/internal/identity"
	"github.com/calejo/formgate/internal/middleware"
	"github.com/calejo/formgate/internal/service"
	"github.com/calejo/formgate/internal/store"
	"github.com/calejo/formgate/internal/store/listclient"
	"github.com/calejo/formgate/internal/store/sqlite"
	"github.com/calejo/formgate/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var recordStore store.RecordStore
	switch cfg.StoreMode {
	case "remote":
		recordStore = listclient.New(cfg.RemoteBaseURL, nil)
		slog.Info("Record store initialized", "mode", "remote", "base_url", cfg.RemoteBaseURL)
	default:
		recordStore, err = sqlite.New(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		slog.Info("Record store initialized", "mode", "local", "database", cfg.DBPath)
	}
	defer recordStore.Close()

	policy := authz.Policy{
		AdminGroups:  cfg.AdminGroups,
		EditorGroups: cfg.EditorGroups,
		AllowPrint:   cfg.AllowPrint,
	}

	svc := service.NewFormService(
		recordStore,
		identity.NewClient(cfg.RemoteBaseURL, nil),
		policy,
		cfg.NavRoot,
	)

	api := http.NewServeMux()
	svc.Register(api)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	mux := http.NewServeMux()
	mux.Handle("/sessions", middleware.RequireAuth(jwtManager, api))
	mux.Handle("/sessions/", middleware.RequireAuth(jwtManager, api))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	loggedHandler := middleware.Logging(mux)

	// HTTP/2 without TLS for in-cluster hops.
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	slog.Info("Server starting", "address", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
