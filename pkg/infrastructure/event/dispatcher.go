package event

import (
	log "github.com/sirupsen/logrus"

	"canteen/pkg/domain/service"
)

// LogDispatcher writes every domain event to the structured log and forwards
// it to the optional next dispatcher.
type LogDispatcher struct {
	logger *log.Entry
	next   service.EventDispatcher
}

func NewLogDispatcher(logger *log.Entry, next service.EventDispatcher) *LogDispatcher {
	return &LogDispatcher{logger: logger, next: next}
}

func (d *LogDispatcher) Dispatch(event service.Event) error {
	d.logger.WithFields(log.Fields{
		"event":   event.Type(),
		"payload": event,
	}).Info("domain event")

	if d.next == nil {
		return nil
	}
	if err := d.next.Dispatch(event); err != nil {
		d.logger.WithError(err).WithField("event", event.Type()).Error("failed to dispatch event")
		return err
	}
	return nil
}
