package alert

import (
	"context"
	"log"
	"strings"
)

// LogSink writes alerts to the process log. Always configured, so an
// environment without a webhook still leaves an operator trail.
type LogSink struct{}

var _ Sink = LogSink{}

func (LogSink) Deliver(ctx context.Context, alert Alert) error {
	log.Printf("ALERT [%s] %s/%s: %s",
		strings.ToUpper(string(alert.Severity)), alert.Kind, alert.Identifier,
		strings.Join(alert.Reasons, ", "))
	return nil
}
