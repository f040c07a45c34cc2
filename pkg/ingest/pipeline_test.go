package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rfmesh/meshmap/pkg/device"
	"github.com/rfmesh/meshmap/pkg/events"
)

type fakeConn struct {
	packets      chan device.Packet
	connectErr   error
	configureErr error
	configuredID uint32
	closeOnce    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{packets: make(chan device.Packet, 16)}
}

func (c *fakeConn) Connect(ctx context.Context) error { return c.connectErr }

func (c *fakeConn) Configure(configID uint32) error {
	c.configuredID = configID
	return c.configureErr
}

func (c *fakeConn) Packets() <-chan device.Packet { return c.packets }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.packets) })
	return nil
}

type recordingDispatcher struct {
	mu            sync.Mutex
	deviceUpdates []device.Snapshot
	graphUpdates  []events.GraphSnapshot
	statuses      []events.ConfigurationStatus
	notifications []device.Notification
	deviceErr     error
}

func (d *recordingDispatcher) DeviceUpdated(s device.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deviceErr != nil {
		return d.deviceErr
	}
	d.deviceUpdates = append(d.deviceUpdates, s)
	return nil
}

func (d *recordingDispatcher) GraphUpdated(s events.GraphSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graphUpdates = append(d.graphUpdates, s)
	return nil
}

func (d *recordingDispatcher) ConfigurationStatus(s events.ConfigurationStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, s)
	return nil
}

func (d *recordingDispatcher) Notify(n device.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, n)
	return nil
}

func (d *recordingDispatcher) snapshot() (statuses []events.ConfigurationStatus, graphs int, notifs int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.ConfigurationStatus(nil), d.statuses...), len(d.graphUpdates), len(d.notifications)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestConnectRegistersConfiguringSession(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, time.Minute)
	conn := newFakeConn()
	defer p.Shutdown()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	status, err := p.SessionStatus("/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	if status != device.StatusConfiguring {
		t.Errorf("Status = %s, want configuring", status)
	}
	if conn.configuredID == 0 {
		t.Error("Configure was never called with a round id")
	}
}

func TestConnectFailsOnHandshakeError(t *testing.T) {
	p := New(&recordingDispatcher{}, nil, nil, time.Minute)
	conn := newFakeConn()
	conn.connectErr = errors.New("no such port")

	err := p.Connect(context.Background(), "/dev/bogus", conn)
	if err == nil {
		t.Fatal("Expected handshake error")
	}
	if _, err := p.SessionStatus("/dev/bogus"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session registered despite handshake failure: %v", err)
	}
}

func TestConfigurationSuccessBeforeTimeout(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, 250*time.Millisecond)
	conn := newFakeConn()
	defer p.Shutdown()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	conn.packets <- device.ConfigCompletePacket{ConfigID: conn.configuredID}

	waitFor(t, "session to reach connected", func() bool {
		status, err := p.SessionStatus("/dev/ttyUSB0")
		return err == nil && status == device.StatusConnected
	})

	// Let the stale timeout fire; it must observe the advanced status and
	// produce no failure notification
	time.Sleep(400 * time.Millisecond)

	statuses, _, _ := dispatcher.snapshot()
	if len(statuses) != 1 {
		t.Fatalf("Expected exactly 1 configuration status, got %d: %+v", len(statuses), statuses)
	}
	if !statuses[0].Successful {
		t.Errorf("Configuration status should be successful: %+v", statuses[0])
	}
}

func TestTimeoutWhileStillConfiguring(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, 50*time.Millisecond)
	conn := newFakeConn()
	defer p.Shutdown()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, "timeout failure status", func() bool {
		statuses, _, _ := dispatcher.snapshot()
		return len(statuses) == 1 && !statuses[0].Successful
	})

	status, err := p.SessionStatus("/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("SessionStatus: %v", err)
	}
	if status != device.StatusFailed {
		t.Errorf("Status = %s after timeout, want failed", status)
	}

	// A late success event must not flip the failed session to connected
	// or emit a second status
	conn.packets <- device.ConfigCompletePacket{ConfigID: conn.configuredID}
	time.Sleep(100 * time.Millisecond)

	statuses, _, _ := dispatcher.snapshot()
	if len(statuses) != 1 {
		t.Fatalf("Expected exactly 1 configuration status, got %d", len(statuses))
	}
	status, _ = p.SessionStatus("/dev/ttyUSB0")
	if status != device.StatusFailed {
		t.Errorf("Late success event moved status to %s", status)
	}
}

func TestNodeEventsRebuildSharedGraph(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, time.Minute)
	conn := newFakeConn()
	defer p.Shutdown()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	conn.packets <- device.NodeInfoPacket{Node: device.NodeInfo{Key: "a", Latitude: 51.5, Longitude: -0.12}}
	conn.packets <- device.NodeInfoPacket{Node: device.NodeInfo{Key: "b"}}
	conn.packets <- device.NeighborInfoPacket{NodeKey: "a", Neighbors: []device.Neighbor{{Key: "b", SNR: 7.5}}}

	waitFor(t, "three graph updates", func() bool {
		_, graphs, _ := dispatcher.snapshot()
		return graphs == 3
	})

	snapshot := p.GraphSnapshot()
	if len(snapshot.Nodes) != 2 {
		t.Errorf("Topology has %d nodes, want 2", len(snapshot.Nodes))
	}
	if len(snapshot.Edges) != 1 {
		t.Fatalf("Topology has %d edges, want 1", len(snapshot.Edges))
	}
	if snapshot.Edges[0].Weight != 7.5 {
		t.Errorf("Edge weight = %v, want 7.5", snapshot.Edges[0].Weight)
	}
}

func TestDispatchFailureDoesNotStopTheLoop(t *testing.T) {
	dispatcher := &recordingDispatcher{deviceErr: errors.New("sink down")}
	p := New(dispatcher, nil, nil, time.Minute)
	conn := newFakeConn()
	defer p.Shutdown()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	conn.packets <- device.NodeInfoPacket{Node: device.NodeInfo{Key: "a"}}
	conn.packets <- device.TextMessagePacket{From: "a", Body: "still alive"}

	// The device sink fails every time, yet graph updates and
	// notifications keep flowing
	waitFor(t, "graph update and notification despite sink failure", func() bool {
		_, graphs, notifs := dispatcher.snapshot()
		return graphs == 1 && notifs == 1
	})
}

func TestDisconnectUnregistersSession(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, time.Minute)
	conn := newFakeConn()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := p.Disconnect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	waitFor(t, "session to unregister", func() bool {
		_, err := p.SessionStatus("/dev/ttyUSB0")
		return errors.Is(err, ErrSessionNotFound)
	})
	p.Shutdown()
}

func TestEventForUnknownSessionIsSkipped(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, time.Minute)

	// Must not panic or dispatch anything
	p.handleEvent("/dev/ghost", device.NodeInfoPacket{Node: device.NodeInfo{Key: "a"}})

	statuses, graphs, notifs := dispatcher.snapshot()
	if len(statuses)+graphs+notifs != 0 {
		t.Errorf("Unknown session produced dispatches: %d/%d/%d", len(statuses), graphs, notifs)
	}
}

func TestTimeoutAfterDisconnectIsSilent(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, 100*time.Millisecond)
	conn := newFakeConn()

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	conn.Close()
	p.Shutdown()

	statuses, _, _ := dispatcher.snapshot()
	for _, s := range statuses {
		if !s.Successful {
			t.Errorf("Guard fired for a torn-down session: %+v", s)
		}
	}
}

func TestSessionCountsTrackFailures(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	p := New(dispatcher, nil, nil, 50*time.Millisecond)
	conn := newFakeConn()

	if total, failed := p.SessionCounts(); total != 0 || failed != 0 {
		t.Fatalf("SessionCounts = (%d, %d) before any connection, want (0, 0)", total, failed)
	}

	if err := p.Connect(context.Background(), "/dev/ttyUSB0", conn); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if total, failed := p.SessionCounts(); total != 1 || failed != 0 {
		t.Fatalf("SessionCounts = (%d, %d) while configuring, want (1, 0)", total, failed)
	}

	// The round times out; the failed session stays registered
	waitFor(t, "session to fail", func() bool {
		total, failed := p.SessionCounts()
		return total == 1 && failed == 1
	})

	if err := p.Disconnect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	waitFor(t, "counts to drop after disconnect", func() bool {
		total, failed := p.SessionCounts()
		return total == 0 && failed == 0
	})
	p.Shutdown()
}
