package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/urfave/negroni"

	"github.com/ethpandaops/dora-eventcache/handlers/api"
	"github.com/ethpandaops/dora-eventcache/handlers/middleware"
	"github.com/ethpandaops/dora-eventcache/metrics"
	"github.com/ethpandaops/dora-eventcache/types"
	"github.com/ethpandaops/dora-eventcache/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the event cache http api",
	Long:  "Runs the event cache http api and the metrics server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logWriter, logger := utils.InitLogger(cfg)
	defer logWriter.Dispose()

	configPath, _ := cmd.Flags().GetString("config")
	logger.WithFields(logrus.Fields{
		"config":  configPath,
		"version": utils.GetBuildVersion(),
	}).Printf("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventCache, executionClient, err := initEventCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer executionClient.Close()
	defer eventCache.Close()

	metrics.AddPreCollectFn(eventCache.PublishMetrics)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled && !cfg.Metrics.Public {
		metricsServer, err = metrics.StartMetricsServer(logger.WithField("module", "metrics"), cfg.Metrics.Host, cfg.Metrics.Port)
		if err != nil {
			logger.Fatalf("error starting metrics server: %v", err)
		}
	}

	router := mux.NewRouter()
	api.NewApiHandler(logger.WithField("module", "api"), eventCache, executionClient.GetChainID()).RegisterRoutes(router)
	if cfg.Metrics.Enabled && cfg.Metrics.Public {
		router.Handle("/metrics", metrics.GetMetricsHandler()).Methods("GET")
	}

	webserver, err := startWebserver(cfg, router, logger)
	if err != nil {
		utils.LogFatal(err, "error starting webserver", 0)
	}

	utils.WaitForCtrlC()
	logger.Println("exiting...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	webserver.Shutdown(shutdownCtx)
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	return nil
}

func startWebserver(cfg *types.Config, router *mux.Router, logger logrus.FieldLogger) (*http.Server, error) {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseHandler(middleware.CorsMiddleware(cfg.Server.CorsOrigins)(router))

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = time.Second * 30
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = time.Second * 15
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = time.Second * 60
	}
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		Handler:      n,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	logger.Printf("http server listening on %v", srv.Addr)
	go func() {
		defer utils.HandleSubroutinePanic("webserver")

		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Error serving api")
		}
	}()

	return srv, nil
}
