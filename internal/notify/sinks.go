package notify

import (
	"context"
	"errors"
	"log"
	"strings"
)

// LogSink writes every event to the standard logger.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, ev Event) error {
	log.Printf("[info] notify kind=%s task=%s users=%s channel=%s: %s",
		ev.Kind, ev.Task.ID, strings.Join(ev.UserIDs, ","), ev.Channel, ev.Message())
	return nil
}

// MultiSink hands every event to each sink in turn. One sink failing does
// not stop the others.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, ev Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
