package visa

import (
	"log/slog"
	"time"
)

// WithSettleDelay returns a resource that waits d after every write and
// query so the instrument state can settle.
func WithSettleDelay(r Resource, d time.Duration) Resource {
	if d <= 0 {
		return r
	}
	return &settled{Resource: r, delay: d, sleep: time.Sleep}
}

type settled struct {
	Resource
	delay time.Duration
	sleep func(time.Duration)
}

func (s *settled) Write(command string) error {
	err := s.Resource.Write(command)
	s.sleep(s.delay)
	return err
}

func (s *settled) Query(command string) (string, error) {
	reply, err := s.Resource.Query(command)
	s.sleep(s.delay)
	return reply, err
}

// WithTrace logs every command, reply and failure on r at debug level.
func WithTrace(r Resource, logger *slog.Logger, address string) Resource {
	if logger == nil {
		return r
	}
	return &traced{Resource: r, logger: logger.With("address", address)}
}

type traced struct {
	Resource
	logger *slog.Logger
}

func (t *traced) Write(command string) error {
	err := t.Resource.Write(command)
	t.logger.Debug("visa write", "command", command, "error", err)
	return err
}

func (t *traced) Query(command string) (string, error) {
	reply, err := t.Resource.Query(command)
	t.logger.Debug("visa query", "command", command, "reply", reply, "error", err)
	return reply, err
}
