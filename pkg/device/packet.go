package device

// Packet is one decoded event from a radio. Wire-level framing and protobuf
// decoding happen in the transport layer; by the time a packet reaches the
// session it is one of the typed variants below.
type Packet interface {
	isPacket()
}

// MyNodeInfoPacket announces which mesh node the connected radio is.
type MyNodeInfoPacket struct {
	NodeKey string
}

// NodeInfoPacket carries the full record of a mesh node: identity, last
// known position and link quality.
type NodeInfoPacket struct {
	Node NodeInfo
}

// PositionPacket updates the geographic position of a known node.
type PositionPacket struct {
	NodeKey   string
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// NeighborInfoPacket carries one node's view of its direct neighbors with
// per-link signal-to-noise ratios.
type NeighborInfoPacket struct {
	NodeKey   string
	Neighbors []Neighbor
}

// ChannelPacket carries channel settings streamed during configuration.
type ChannelPacket struct {
	Index int32
	Role  string
}

// ConfigCompletePacket signals that the radio finished streaming its
// configuration for the given request id.
type ConfigCompletePacket struct {
	ConfigID uint32
}

// TextMessagePacket is a user-visible message received over the mesh.
type TextMessagePacket struct {
	From    string
	Body    string
	Channel int32
}

func (MyNodeInfoPacket) isPacket()     {}
func (NodeInfoPacket) isPacket()       {}
func (PositionPacket) isPacket()       {}
func (NeighborInfoPacket) isPacket()   {}
func (ChannelPacket) isPacket()        {}
func (ConfigCompletePacket) isPacket() {}
func (TextMessagePacket) isPacket()    {}
