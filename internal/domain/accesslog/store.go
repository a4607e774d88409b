// Package accesslog defines the AccessEvent sink the forwarder writes to and
// the updater reads pages from.
package accesslog

import (
	"context"

	"github.com/wl4g-collab/botwaf-go/internal/domain/waf"
)

// Store persists AccessEvents and serves bounded pages back out for the
// updater's sampling step (§4.8: "page AccessEvents from the audit sink,
// channel_size-bounded page size").
type Store interface {
	// Append stores events. Must be non-blocking from the caller's
	// perspective -- the forwarder calls this after every relayed request.
	Append(ctx context.Context, events ...waf.AccessEvent) error
	// Page returns up to limit events starting after cursor (an opaque,
	// monotonically increasing token; empty cursor starts from the oldest
	// retained event), and the cursor to resume from on the next call.
	Page(ctx context.Context, cursor string, limit int) (events []waf.AccessEvent, next string, err error)
	// Flush forces pending events to storage. Called during shutdown.
	Flush(ctx context.Context) error
	// Close releases resources.
	Close() error
}
