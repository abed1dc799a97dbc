package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Engine    string                 `json:"engine"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type outage struct {
	since   time.Time
	alerted bool
}

// Alerter watches the readiness checks and posts to a webhook when one has
// been failing for longer than the delay, and again when it recovers.
// Without a webhook URL alerts are only logged.
type Alerter struct {
	readiness  *Readiness
	webhookURL string
	delay      time.Duration
	engineID   string
	client     *http.Client
	log        *zap.Logger

	mu      sync.Mutex
	outages map[string]*outage
	now     func() time.Time
	send    func(AlertPayload)
}

// NewAlerter creates an alerter over the server's readiness checks.
func (s *Server) NewAlerter(webhookURL string, delay time.Duration) *Alerter {
	a := &Alerter{
		readiness:  s.readiness,
		webhookURL: webhookURL,
		delay:      delay,
		engineID:   s.engineID,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        s.log,
		outages:    make(map[string]*outage),
		now:        time.Now,
	}
	a.send = a.post
	return a
}

// Run checks every interval until ctx is done.
func (a *Alerter) Run(ctx context.Context, interval time.Duration) error {
	if a.webhookURL != "" {
		a.log.Info("alerts enabled", zap.Duration("delay", a.delay))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Check()
		}
	}
}

// Check probes every readiness check once.
func (a *Alerter) Check() {
	for _, name := range a.readiness.Names() {
		a.observe(name, a.readiness.Probe(name))
	}
}

func (a *Alerter) observe(name string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	o, down := a.outages[name]
	if ok {
		if down && o.alerted {
			a.send(a.payload(name+"_restored", SeverityInfo, name+" connection restored", map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			}))
		}
		delete(a.outages, name)
		return
	}

	if !down {
		o = &outage{since: now}
		a.outages[name] = o
	}
	if !o.alerted && now.Sub(o.since) >= a.delay {
		o.alerted = true
		a.send(a.payload(name+"_unavailable", SeverityCritical, name+" unavailable", map[string]interface{}{
			"disconnected_since":   o.since.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(now.Sub(o.since).Seconds()),
		}))
	}
}

func (a *Alerter) payload(event, severity, msg string, details map[string]interface{}) AlertPayload {
	return AlertPayload{
		Engine:    a.engineID,
		Event:     event,
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   msg,
		Details:   details,
	}
}

// post sends the alert asynchronously. Failures are logged.
func (a *Alerter) post(p AlertPayload) {
	if a.webhookURL == "" {
		a.log.Warn("alert", zap.String("event", p.Event), zap.String("severity", p.Severity), zap.String("msg", p.Message))
		return
	}
	go func() {
		body, err := json.Marshal(p)
		if err != nil {
			return
		}
		resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			a.log.Warn("alert webhook failed", zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			a.log.Warn("alert webhook rejected", zap.Int("status", resp.StatusCode))
		}
	}()
}
