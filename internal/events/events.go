// Package events publishes placement results to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/cache-placement/internal/core/observability"
)

const TypeCompleted = "placement.completed"

type Event struct {
	Type     string    `json:"type"`
	RunKey   string    `json:"run_key"`
	Input    string    `json:"input,omitempty"`
	Strategy string    `json:"strategy"`
	Policy   string    `json:"policy"`
	Caches   int       `json:"caches_used"`
	Placed   int       `json:"placed"`
	Rejected int       `json:"rejected"`
	Saved    int64     `json:"saved"`
	Score    int64     `json:"score"`
	TS       time.Time `json:"ts"`
}

type Publisher struct {
	topic   string
	log     *slog.Logger
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	drained chan struct{}

	mu     sync.Mutex
	closed bool
}

// ProducerConfig is the sarama configuration the publisher expects:
// both result channels enabled so every message is accounted for.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, log), nil
}

// NewWithProducer wraps an existing producer. The producer must return both
// successes and errors.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		drained: make(chan struct{}),
	}
	go p.run()
	go p.drain()
	return p
}

func (p *Publisher) run() {
	defer close(p.stopped)
	for ev := range p.events {
		b, err := json.Marshal(ev)
		if err != nil {
			observability.IncEvent("error")
			p.log.Warn("events: marshal", "err", err, "run_key", ev.RunKey)
			continue
		}
		p.prod.Input() <- &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.RunKey),
			Value: sarama.ByteEncoder(b),
		}
	}
}

func (p *Publisher) drain() {
	defer close(p.drained)
	succ, errs := p.prod.Successes(), p.prod.Errors()
	for succ != nil || errs != nil {
		select {
		case _, ok := <-succ:
			if !ok {
				succ = nil
				continue
			}
			observability.IncEvent("ok")
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			observability.IncEvent("error")
			if perr != nil {
				p.log.Warn("events: producer error", "err", perr.Err, "topic", p.topic)
			}
		}
	}
}

// Publish enqueues ev without blocking. It reports false when the queue is
// full or the publisher is closed; the event is dropped in both cases.
func (p *Publisher) Publish(ev Event) bool {
	if ev.Type == "" {
		ev.Type = TypeCompleted
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		observability.IncEvent("dropped")
		return false
	}
	select {
	case p.events <- ev:
		return true
	default:
		observability.IncEvent("dropped")
		return false
	}
}

// Close flushes queued events and shuts the producer down. Later calls are
// no-ops.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	err := p.prod.Close()
	<-p.drained
	if err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
