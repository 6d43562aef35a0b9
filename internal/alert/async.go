package alert

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// AsyncDispatcher queues alerts on a bounded channel consumed by a
// background worker. When the queue is full the alert is dropped with a
// log line instead of blocking the hot path. Delivery is throttled so a
// runaway abuse wave cannot flood the webhook.
type AsyncDispatcher struct {
	queue   chan Alert
	sinks   []Sink
	limiter *rate.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewAsyncDispatcher(queueSize int, maxPerSecond float64, sinks ...Sink) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxPerSecond <= 0 {
		maxPerSecond = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &AsyncDispatcher{
		queue:   make(chan Alert, queueSize),
		sinks:   sinks,
		limiter: rate.NewLimiter(rate.Limit(maxPerSecond), 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go d.worker(ctx)

	return d
}

var _ Dispatcher = (*AsyncDispatcher)(nil)

func (d *AsyncDispatcher) Send(alert Alert) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	select {
	case d.queue <- alert:
	default:
		log.Printf("alert: queue full, dropping %s alert for %s/%s", alert.Severity, alert.Kind, alert.Identifier)
	}
}

func (d *AsyncDispatcher) worker(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case alert := <-d.queue:
					d.deliver(alert)
				default:
					return
				}
			}
		case alert := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				d.deliver(alert)
				continue
			}
			d.deliver(alert)
		}
	}
}

func (d *AsyncDispatcher) deliver(alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			log.Printf("alert: delivery failed for %s/%s: %v", alert.Kind, alert.Identifier, err)
		}
	}
}

// Close stops the worker after draining queued alerts.
func (d *AsyncDispatcher) Close() {
	d.cancel()
	<-d.done
}
