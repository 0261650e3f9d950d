//go:build windows

package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sys/windows/svc"

	"github.com/justin-molloy/mediawatch/config"
	"github.com/justin-molloy/mediawatch/engine"
	"github.com/justin-molloy/mediawatch/service"
)

// runService hands the engine to the Service Control Manager when started
// as a Windows service. It reports false when running interactively.
func runService(cfg *config.ConfigData, eng *engine.Engine, server *http.Server) (bool, error) {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false, fmt.Errorf("failed to determine session type: %w", err)
	}
	if !isService {
		return false, nil
	}

	slog.Info("Running as Windows Service", "isService", isService)
	err = svc.Run(AppName, &service.MediaWatchService{
		Name:      AppName,
		Heartbeat: cfg.Heartbeat,
		Engine:    eng,
		Server:    server,
	})
	return true, err
}
