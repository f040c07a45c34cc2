package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rfmesh/meshmap/pkg/device"
	"github.com/rfmesh/meshmap/pkg/logging"
)

// simNode is one fake radio in the simulated mesh.
type simNode struct {
	key       string
	longName  string
	shortName string
	lat, lon  float64
	alt       float64
}

var simMesh = []simNode{
	{"!a1b2c3d4", "Hilltop Repeater", "HILL", 51.5074, -0.1278, 95},
	{"!e5f6a7b8", "Riverside Base", "RIVR", 51.5007, -0.1246, 12},
	{"!c9d0e1f2", "Allotment Solar", "ALLT", 51.5115, -0.1160, 28},
	{"!33445566", "Van Tracker", "VAN", 51.4975, -0.1357, 8},
}

// simulatedConn feeds a scripted mesh through the pipeline: configuration
// handshake first, then node info, positions and periodic neighbor tables
// with jittered link quality.
type simulatedConn struct {
	packets   chan device.Packet
	log       logging.Logger
	configID  uint32
	closeOnce sync.Once
	done      chan struct{}
}

func newSimulatedConn(log logging.Logger) *simulatedConn {
	return &simulatedConn{
		packets: make(chan device.Packet, 64),
		log:     log.With(logging.String("component", "sim-radio")),
		done:    make(chan struct{}),
	}
}

func (c *simulatedConn) Connect(ctx context.Context) error { return nil }

func (c *simulatedConn) Configure(configID uint32) error {
	c.configID = configID
	go c.run()
	return nil
}

func (c *simulatedConn) Packets() <-chan device.Packet { return c.packets }

func (c *simulatedConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// send drops the packet if the conn is being torn down.
func (c *simulatedConn) send(pkt device.Packet) bool {
	select {
	case c.packets <- pkt:
		return true
	case <-c.done:
		return false
	}
}

func (c *simulatedConn) run() {
	defer close(c.packets)

	self := simMesh[0]
	if !c.send(device.MyNodeInfoPacket{NodeKey: self.key}) {
		return
	}
	for _, n := range simMesh {
		ok := c.send(device.NodeInfoPacket{Node: device.NodeInfo{
			Key:       n.key,
			LongName:  n.longName,
			ShortName: n.shortName,
			Latitude:  n.lat,
			Longitude: n.lon,
			Altitude:  n.alt,
			LastHeard: time.Now(),
		}})
		if !ok {
			return
		}
	}
	if !c.send(device.ConfigCompletePacket{ConfigID: c.configID}) {
		return
	}
	c.log.Info("simulated configuration complete")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			for i, n := range simMesh {
				neighbors := make([]device.Neighbor, 0, len(simMesh)-1)
				for j, other := range simMesh {
					if i == j {
						continue
					}
					neighbors = append(neighbors, device.Neighbor{
						Key: other.key,
						SNR: 4 + rand.Float64()*8,
					})
				}
				if !c.send(device.NeighborInfoPacket{NodeKey: n.key, Neighbors: neighbors}) {
					return
				}
			}
		}
	}
}
