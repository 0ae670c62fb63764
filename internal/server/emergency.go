package server

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bnema/waycheck/internal/logger"
)

// EmergencyStop shuts the compositor down when the harness is interrupted,
// which also unblocks any client stuck in a dispatch call.
type EmergencyStop struct {
	server   *Server
	signals  []os.Signal
	stopChan chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	triggered bool
}

// NewEmergencyStop watches SIGINT and SIGTERM unless other signals are given.
func NewEmergencyStop(server *Server, signals ...os.Signal) *EmergencyStop {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return &EmergencyStop{
		server:   server,
		signals:  signals,
		stopChan: make(chan struct{}),
	}
}

// Start begins listening for signals.
func (es *EmergencyStop) Start() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, es.signals...)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				logger.Warnf("[EMERGENCY] %v received, stopping display server", sig)
				es.Trigger("signal")
			case <-es.stopChan:
				return
			}
		}
	}()
}

// Stop ends signal monitoring. It does not touch the server.
func (es *EmergencyStop) Stop() {
	es.stopOnce.Do(func() {
		close(es.stopChan)
	})
}

// Trigger stops the server if it is still running.
func (es *EmergencyStop) Trigger(reason string) {
	es.mu.Lock()
	es.triggered = true
	es.mu.Unlock()

	if !es.server.Running() {
		return
	}
	logger.Warnf("[EMERGENCY] Stopping display server (reason: %s)", reason)
	if err := es.server.Stop(); err != nil {
		logger.Errorf("[EMERGENCY] Failed to stop display server: %v", err)
	}
}

// Triggered reports whether Trigger has run.
func (es *EmergencyStop) Triggered() bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.triggered
}
