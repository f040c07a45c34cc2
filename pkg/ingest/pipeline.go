// Package ingest runs the per-connection consumer loops that keep the
// shared topology in sync with decoded device events. Two goroutines serve
// each connection: the decode loop and a one-shot configuration timeout
// guard. Both serialize through the registry lock, so configuration
// success and timeout cannot race: whichever acquires the lock first wins
// and the loser observes the advanced status and backs off.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rfmesh/meshmap/pkg/device"
	"github.com/rfmesh/meshmap/pkg/events"
	"github.com/rfmesh/meshmap/pkg/graph"
	"github.com/rfmesh/meshmap/pkg/logging"
	"github.com/rfmesh/meshmap/pkg/metrics"
)

// ErrSessionNotFound is returned when a connection id has no registered
// session. The decode loop logs it and skips the event.
var ErrSessionNotFound = errors.New("session not found")

// DefaultConfigTimeout bounds how long a session may stay in Configuring
// before the timeout guard declares the round failed.
const DefaultConfigTimeout = 1500 * time.Millisecond

// Pipeline owns the two shared resources of the ingestion core: the device
// registry and the current topology.
//
// Lock order invariant: mu (registry) before graphMu, always. Any future
// lock acquirer must follow the same order.
type Pipeline struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	conns   map[string]Conn

	graphMu sync.Mutex
	graph   *graph.Graph

	dispatcher    events.Dispatcher
	configTimeout time.Duration
	configSeq     atomic.Uint32

	metrics *metrics.Registry
	log     logging.Logger
	wg      sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a pipeline publishing through the given dispatcher. A zero
// configTimeout falls back to DefaultConfigTimeout.
func New(dispatcher events.Dispatcher, reg *metrics.Registry, log logging.Logger, configTimeout time.Duration) *Pipeline {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if configTimeout <= 0 {
		configTimeout = DefaultConfigTimeout
	}
	return &Pipeline{
		devices:       make(map[string]*device.Device),
		conns:         make(map[string]Conn),
		graph:         graph.New(log),
		dispatcher:    dispatcher,
		configTimeout: configTimeout,
		metrics:       reg,
		log:           log,
		done:          make(chan struct{}),
	}
}

// Connect establishes a session on the given port: transport handshake,
// configuration request, registry insert, then the timeout guard and the
// decode loop are spawned. A new connection replaces the shared topology
// wholesale.
func (p *Pipeline) Connect(ctx context.Context, port string, conn Conn) error {
	configID := p.configSeq.Add(1)
	dev := device.New(port, configID, p.log)
	log := p.log.With(logging.Port(port))

	if err := dev.SetStatus(device.StatusConnecting); err != nil {
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("transport handshake on %s: %w", port, err)
	}

	if err := dev.SetStatus(device.StatusConfiguring); err != nil {
		return err
	}
	if err := conn.Configure(configID); err != nil {
		return fmt.Errorf("configuration request on %s: %w", port, err)
	}

	// Fresh connection, fresh topology
	p.graphMu.Lock()
	p.graph = graph.New(p.log)
	p.graphMu.Unlock()

	p.mu.Lock()
	p.devices[port] = dev
	p.conns[port] = conn
	p.mu.Unlock()

	p.metrics.SessionStarted()
	log.Info("session registered", logging.ConfigID(configID))

	p.wg.Add(2)
	go p.guardConfigTimeout(port)
	go p.decodeLoop(port, conn)

	return nil
}

// Disconnect closes the connection on the given port. The decode loop
// observes the closed packet stream and unregisters the session.
func (p *Pipeline) Disconnect(port string) error {
	p.mu.Lock()
	conn, ok := p.conns[port]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, port)
	}
	return conn.Close()
}

// Shutdown closes every connection and waits for all per-connection
// goroutines to drain. Pending timeout guards are released without
// firing.
func (p *Pipeline) Shutdown() {
	p.doneOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	conns := make([]Conn, 0, len(p.conns))
	for _, conn := range p.conns {
		conns = append(conns, conn)
	}
	p.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	p.wg.Wait()
}

// SessionStatus reports the status of the session on the given port.
func (p *Pipeline) SessionStatus(port string) (device.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dev, ok := p.devices[port]
	if !ok {
		return device.StatusDisconnected, fmt.Errorf("%w: %s", ErrSessionNotFound, port)
	}
	return dev.Status(), nil
}

// SessionCounts reports how many sessions are registered and how many of
// those have failed configuration. Failed sessions stay registered until
// their connection is torn down, so health checks can see them.
func (p *Pipeline) SessionCounts() (total, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, dev := range p.devices {
		if dev.Status() == device.StatusFailed {
			failed++
		}
	}
	return len(p.devices), failed
}

// GraphSnapshot returns a detached copy of the current topology.
func (p *Pipeline) GraphSnapshot() events.GraphSnapshot {
	p.graphMu.Lock()
	defer p.graphMu.Unlock()
	return events.NewGraphSnapshot(p.graph)
}

// guardConfigTimeout is the one-shot timeout guard. The timer always
// fires; whether it acts is decided under the registry lock by re-checking
// the session status. Anything other than Configuring means the timeout is
// stale and the guard exits without side effects.
func (p *Pipeline) guardConfigTimeout(port string) {
	defer p.wg.Done()
	log := p.log.With(logging.Port(port))

	timer := time.NewTimer(p.configTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-p.done:
		return
	}

	p.mu.Lock()
	dev, ok := p.devices[port]
	if !ok {
		p.mu.Unlock()
		log.Debug("configuration timeout fired for unregistered session")
		return
	}
	if dev.Status() != device.StatusConfiguring {
		p.mu.Unlock()
		log.Debug("configuration timeout stale",
			logging.String("status", dev.Status().String()))
		return
	}

	if err := dev.SetStatus(device.StatusFailed); err != nil {
		// Unreachable while the machine allows Configuring -> Failed
		p.mu.Unlock()
		log.Error("failed to mark session failed", logging.Error(err))
		return
	}

	log.Warn("device configuration timed out", logging.Duration("timeout", p.configTimeout))
	p.metrics.RecordConfigOutcome(metrics.ConfigTimeout)

	if err := p.dispatcher.ConfigurationStatus(events.ConfigurationStatus{
		Port:       port,
		Successful: false,
		Message:    "Configuration timed out. Are you sure this is a mesh radio?",
	}); err != nil {
		log.Error("failed to dispatch configuration failure", logging.Error(err))
		p.metrics.RecordDispatchFailure("configuration")
	}
	p.mu.Unlock()
}

// decodeLoop consumes decoded packets until the stream closes, then
// unregisters the session.
func (p *Pipeline) decodeLoop(port string, conn Conn) {
	defer p.wg.Done()
	log := p.log.With(logging.Port(port))

	for pkt := range conn.Packets() {
		p.handleEvent(port, pkt)
	}

	p.mu.Lock()
	delete(p.devices, port)
	delete(p.conns, port)
	p.mu.Unlock()

	p.metrics.SessionEnded()
	log.Info("packet stream closed, session unregistered")
}

// handleEvent applies one decoded packet: session mutation, conditional
// topology rebuild, then downstream forwarding. The registry lock is held
// for the whole event so status transitions serialize with the timeout
// guard; the graph lock is never held across a dispatch call. Forwarding
// failures are logged per sink and the remaining side effects still run.
func (p *Pipeline) handleEvent(port string, pkt device.Packet) {
	start := time.Now()
	packetType := fmt.Sprintf("%T", pkt)
	log := p.log.With(logging.Port(port))

	p.mu.Lock()
	defer p.mu.Unlock()

	dev, ok := p.devices[port]
	if !ok {
		log.Warn("event for unregistered session skipped",
			logging.Error(ErrSessionNotFound))
		p.metrics.RecordEvent(packetType, metrics.EventSkipped, time.Since(start))
		return
	}

	result, err := dev.HandlePacket(pkt)
	if err != nil {
		log.Warn("packet handling failed", logging.Error(err))
		p.metrics.RecordEvent(packetType, metrics.EventError, time.Since(start))
		return
	}

	var graphSnap *events.GraphSnapshot
	if result.RegenerateGraph {
		p.graphMu.Lock()
		dev.RebuildGraph(p.graph)
		snap := events.NewGraphSnapshot(p.graph)
		p.metrics.UpdateGraphSize(p.graph.Order(), p.graph.Size())
		p.graphMu.Unlock()

		graphSnap = &snap
		p.metrics.RecordRegeneration()
	}

	if result.DeviceUpdated {
		if err := p.dispatcher.DeviceUpdated(dev.Snapshot()); err != nil {
			log.Error("failed to dispatch device update", logging.Error(err))
			p.metrics.RecordDispatchFailure("device")
		}
	}

	if graphSnap != nil {
		if err := p.dispatcher.GraphUpdated(*graphSnap); err != nil {
			log.Error("failed to dispatch graph update", logging.Error(err))
			p.metrics.RecordDispatchFailure("graph")
		}
	}

	if result.ConfigurationSuccess && dev.Status() == device.StatusConfigured {
		log.Debug("configuration round succeeded", logging.ConfigID(dev.ConfigID))
		if err := p.dispatcher.ConfigurationStatus(events.ConfigurationStatus{
			Port:       port,
			Successful: true,
		}); err != nil {
			log.Error("failed to dispatch configuration success", logging.Error(err))
			p.metrics.RecordDispatchFailure("configuration")
		}
		if err := dev.SetStatus(device.StatusConnected); err != nil {
			log.Error("failed to advance session to connected", logging.Error(err))
		}
		p.metrics.RecordConfigOutcome(metrics.ConfigSuccess)
	}

	if result.Notification != nil {
		if err := p.dispatcher.Notify(*result.Notification); err != nil {
			log.Error("failed to dispatch notification", logging.Error(err))
			p.metrics.RecordDispatchFailure("notification")
		}
	}

	p.metrics.RecordEvent(packetType, metrics.EventOK, time.Since(start))
}
