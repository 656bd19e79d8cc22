package instrument

import (
	"context"
	"fmt"
	"log/slog"
)

// Identification is the outcome of asking one address for *IDN?. Exactly one
// of Reply and Err is meaningful.
type Identification struct {
	Address string
	Reply   string
	Err     error
}

// Enumerator lists every reachable address together with its
// identification reply or the error that prevented it.
type Enumerator interface {
	DiscoverAll(ctx context.Context) ([]Identification, error)
}

// Discover turns an enumeration into Device records. A failed or malformed
// identification yields a placeholder record for that address; only a
// failure of the enumeration itself is returned. logger may be nil.
func Discover(ctx context.Context, e Enumerator, logger *slog.Logger) ([]Device, error) {
	if logger == nil {
		logger = discardLogger()
	}
	ids, err := e.DiscoverAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("instrument: enumerate: %w", err)
	}

	devices := make([]Device, 0, len(ids))
	for _, id := range ids {
		if id.Err != nil {
			logger.Warn("identification failed", "address", id.Address, "error", id.Err)
			devices = append(devices, PlaceholderDevice(id.Address))
			continue
		}
		dev, err := ParseDevice(id.Reply, id.Address)
		if err != nil {
			logger.Warn("identification unreadable", "address", id.Address, "error", err)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}
