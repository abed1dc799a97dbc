package mqtt

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
)

// StatusSource provides engine snapshots.
type StatusSource interface {
	Status() orchestrator.Status
}

// StatusPublisher publishes a retained engine snapshot on <prefix>/status at
// a fixed interval, skipping unchanged snapshots.
type StatusPublisher struct {
	transport Transport
	source    StatusSource
	topic     string
	log       *zap.Logger

	mu   sync.Mutex
	last []byte

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStatusPublisher creates a publisher for topic.
func NewStatusPublisher(t Transport, source StatusSource, topic string, log *zap.Logger) *StatusPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusPublisher{
		transport: t,
		source:    source,
		topic:     topic,
		log:       log,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background publish loop.
func (p *StatusPublisher) Start(interval time.Duration) {
	p.wg.Add(1)
	go p.loop(interval)
}

// Stop stops the background loop.
func (p *StatusPublisher) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *StatusPublisher) loop(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Publish()
		}
	}
}

// Publish sends the current snapshot if it differs from the last one sent.
// Returns true if a message was published.
func (p *StatusPublisher) Publish() bool {
	payload, err := json.Marshal(p.source.Status())
	if err != nil {
		p.log.Error("encode status", zap.Error(err))
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if string(payload) == string(p.last) {
		return false
	}
	if err := p.transport.Publish(p.topic, true, payload); err != nil {
		p.log.Warn("mqtt publish failed", zap.String("topic", p.topic), zap.Error(err))
		return false
	}
	p.last = payload
	return true
}
