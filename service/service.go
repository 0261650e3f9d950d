//go:build windows

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// Runner is the long-running part of the service.
type Runner interface {
	Start(ctx context.Context) error
	Close()
}

type MediaWatchService struct {
	Name      string
	Heartbeat bool
	Engine    Runner
	Server    *http.Server
}

func (m *MediaWatchService) Execute(args []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {

	s <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// entry point to the watch engine

	if err := m.Engine.Start(ctx); err != nil {
		slog.Error("Engine failed to start", "servicename", m.Name, "error", err)
		return false, 1
	}

	if m.Server != nil {
		go func() {
			if err := m.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server stopped", "addr", m.Server.Addr, "error", err)
			}
		}()
	}

	go runHeartbeat(ctx, s, m.Name, m.Heartbeat)

	s <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

	slog.Info("Service started", "servicename", m.Name)

	for {
		req := <-r

		switch req.Cmd {
		case svc.Interrogate:
			s <- req.CurrentStatus

		case svc.Stop, svc.Shutdown:
			slog.Info("Service stop requested", "command", int(req.Cmd), "servicename", m.Name)
			s <- svc.Status{State: svc.StopPending}
			cancel()
			m.shutdown()
			return false, 0

		default:
			slog.Warn("Unhandled service command", "command", int(req.Cmd), "servicename", m.Name)
		}
	}
}

func (m *MediaWatchService) shutdown() {
	if m.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Server.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown", "error", err)
		}
	}
	m.Engine.Close()
}

func runHeartbeat(ctx context.Context, statusChan chan<- svc.Status, serviceName string, heartbeat bool) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := queryServiceStatus(serviceName)
		if err != nil {
			slog.Error("Failed to query service status", "servicename", serviceName, "error", err)
		}

		if heartbeat {
			slog.Info("Service heartbeat", "servicename", serviceName, "state", state)
			// heartbeat update to SCM
			select {
			case statusChan <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// human readable labels

func queryServiceStatus(serviceName string) (string, error) {
	m, err := mgr.Connect()
	if err != nil {
		return "", err
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return "", err
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return "", err
	}

	return serviceStateToString(status.State), nil
}

func serviceStateToString(state svc.State) string {
	switch state {
	case svc.Stopped:
		return "Stopped"
	case svc.StartPending:
		return "Start Pending"
	case svc.StopPending:
		return "Stop Pending"
	case svc.Running:
		return "Running"
	case svc.ContinuePending:
		return "Continue Pending"
	case svc.PausePending:
		return "Pause Pending"
	case svc.Paused:
		return "Paused"
	default:
		return fmt.Sprintf("Unknown (%d)", state)
	}
}
