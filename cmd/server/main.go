// Command giftcert-router serves gift certificate balance lookups over a
// weighted failover set of databases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mir00r/giftcert-router/docs"
	"github.com/mir00r/giftcert-router/internal/config"
	"github.com/mir00r/giftcert-router/internal/container"
	"github.com/sirupsen/logrus"
)

func main() {
	if checkIfAdminMode() {
		runAdminProcess()
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Server.Port = getPort(cfg.Server.Port)

	log, closeLog, err := container.NewLogger(cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer closeLog()

	log.WithFields(logrus.Fields{
		"version":       container.Version,
		"port":          cfg.Server.Port,
		"databases":     len(cfg.Databases),
		"registry_file": cfg.RegistryFile(),
		"config_source": getConfigSource(cfg),
		"process":       getProcessInfo(),
	}).Info("Starting gift certificate router")

	app, err := container.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize service")
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Server.ShutdownTimeout())
	defer shutdownCancel()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	log.Info("Gift certificate router stopped gracefully")
}
