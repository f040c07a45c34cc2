package ingest

import (
	"context"

	"github.com/rfmesh/meshmap/pkg/device"
)

// Conn is the transport handle for one physical radio connection. Framing
// and protobuf decoding live behind it; the pipeline only ever sees typed
// packets. The Packets channel closes when the connection drops, which is
// the pipeline's disconnect signal.
type Conn interface {
	// Connect performs the transport-level handshake
	Connect(ctx context.Context) error
	// Configure asks the radio to stream its configuration, tagged with
	// the given round id
	Configure(configID uint32) error
	// Packets is the stream of decoded events. Closed on disconnect.
	Packets() <-chan device.Packet
	// Close tears the connection down, closing the packet stream
	Close() error
}
