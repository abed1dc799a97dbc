package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/events"
	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
)

// Topic suffixes under the configured prefix.
const (
	TopicCommands = "commands"
	TopicReplies  = "replies"
	TopicEvents   = "events"
	TopicStatus   = "status"
	TopicOnline   = "online"
)

// Transport is the subset of Client the bridge needs.
type Transport interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, retained bool, payload []byte) error
}

// Dispatcher executes remote commands.
type Dispatcher interface {
	Dispatch(cmd orchestrator.Command) (*orchestrator.Operation, error)
}

// Reply is published on <prefix>/replies for every command received.
type Reply struct {
	Op          string `json:"op"`
	OperationID string `json:"operation_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Bridge routes commands from MQTT into the engine and forwards journal
// events back out.
type Bridge struct {
	transport Transport
	engine    Dispatcher
	journal   *events.Journal
	prefix    string
	log       *zap.Logger

	mu         sync.Mutex
	subscribed bool
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(t Transport, engine Dispatcher, journal *events.Journal, prefix string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		transport: t,
		engine:    engine,
		journal:   journal,
		prefix:    prefix,
		log:       log,
	}
}

// Topic returns prefix/suffix.
func (b *Bridge) Topic(suffix string) string {
	if b.prefix == "" {
		return suffix
	}
	return b.prefix + "/" + suffix
}

// Start subscribes to the command topic and marks the engine online.
// Calling it again is a no-op.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribed {
		return nil
	}
	if err := b.transport.Subscribe(b.Topic(TopicCommands), b.handleCommand); err != nil {
		return err
	}
	b.subscribed = true
	if err := b.transport.Publish(b.Topic(TopicOnline), true, []byte("true")); err != nil {
		b.log.Warn("mqtt publish failed", zap.String("topic", b.Topic(TopicOnline)), zap.Error(err))
	}
	return nil
}

// Run forwards journal events to <prefix>/events until ctx is done or the
// journal closes its subscribers.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.journal.Subscribe()
	defer b.journal.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			if err := b.transport.Publish(b.Topic(TopicOnline), true, []byte("false")); err != nil {
				b.log.Debug("mqtt offline publish failed", zap.Error(err))
			}
			return nil
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			b.forward(e)
		}
	}
}

func (b *Bridge) forward(e events.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		b.log.Error("encode event", zap.String("event", e.Name), zap.Error(err))
		return
	}
	if err := b.transport.Publish(b.Topic(TopicEvents), false, payload); err != nil {
		b.log.Warn("mqtt publish failed", zap.String("topic", b.Topic(TopicEvents)), zap.Error(err))
	}
}

// handleCommand decodes a Command and dispatches it. Malformed payloads get
// an error reply and never reach the engine.
func (b *Bridge) handleCommand(_ paho.Client, msg paho.Message) {
	var cmd orchestrator.Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.log.Warn("invalid mqtt command", zap.String("topic", msg.Topic()), zap.Error(err))
		b.reply(Reply{Error: "invalid command JSON: " + err.Error()})
		return
	}
	cmd.Source = "mqtt"

	op, err := b.engine.Dispatch(cmd)
	r := Reply{Op: cmd.Op}
	if err != nil {
		r.Error = err.Error()
	} else if op != nil {
		r.OperationID = op.ID()
	}
	b.reply(r)
}

func (b *Bridge) reply(r Reply) {
	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := b.transport.Publish(b.Topic(TopicReplies), false, payload); err != nil {
		b.log.Warn("mqtt publish failed", zap.String("topic", b.Topic(TopicReplies)), zap.Error(err))
	}
}
