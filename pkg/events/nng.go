package events

import (
	"context"
	"encoding/json"
	"sync"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/rfmesh/meshmap/pkg/logging"
)

// NNGBridge republishes bus envelopes on an NNG pub socket so
// out-of-process consumers (geometry exporters, analytics) can subscribe by
// topic prefix. Frames are "topic|json".
type NNGBridge struct {
	sock mangos.Socket
	bus  *Bus
	log  logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNNGBridge opens a pub socket listening on addr (e.g. "tcp://:7444").
func NewNNGBridge(addr string, bus *Bus, log logging.Logger) (*NNGBridge, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	sock, err := pub.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, err
	}

	return &NNGBridge{
		sock: sock,
		bus:  bus,
		log:  log.With(logging.String("component", "nng-bridge")),
	}, nil
}

// Start subscribes to every pipeline topic and forwards envelopes until the
// context is cancelled or the bridge is closed.
func (nb *NNGBridge) Start(ctx context.Context) {
	ctx, nb.cancel = context.WithCancel(ctx)

	for _, topic := range Topics() {
		sub := nb.bus.Subscribe(ctx, topic)
		if sub == nil {
			continue
		}
		nb.wg.Add(1)
		go nb.forward(sub)
	}
}

func (nb *NNGBridge) forward(sub *Subscription) {
	defer nb.wg.Done()

	for env := range sub.Channel() {
		data, err := json.Marshal(env)
		if err != nil {
			nb.log.Error("failed to marshal envelope", logging.Error(err),
				logging.String("topic", env.Topic))
			continue
		}

		frame := make([]byte, 0, len(env.Topic)+1+len(data))
		frame = append(frame, env.Topic...)
		frame = append(frame, '|')
		frame = append(frame, data...)

		if err := nb.sock.Send(frame); err != nil {
			nb.log.Error("failed to publish envelope", logging.Error(err),
				logging.String("topic", env.Topic))
		}
	}
}

// Close stops forwarding and closes the socket.
func (nb *NNGBridge) Close() error {
	if nb.cancel != nil {
		nb.cancel()
	}
	nb.wg.Wait()
	return nb.sock.Close()
}
