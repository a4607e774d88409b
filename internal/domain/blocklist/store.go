package blocklist

import "context"

// BlockList is the port the IP filter step reads and the admin endpoints
// write through. RedisBlockList backs it with a Redis bitmap at a fixed key
// (§6), which survives process restart; MemoryBlockList keeps a
// process-local set, which does not. Membership test is O(1) and writes are
// last-writer-wins.
type BlockList interface {
	// IsBlocked tests whether ip's bit is set. Backend errors are the caller's
	// responsibility to treat as fail-open (§4.3) -- this method returns the
	// error rather than swallowing it so callers can log it distinctly.
	IsBlocked(ctx context.Context, ip string) (bool, error)
	// Block sets ip's bit and returns the prior value.
	Block(ctx context.Context, ip string) (prior bool, err error)
	// Unblock clears ip's bit and returns the prior value.
	Unblock(ctx context.Context, ip string) (prior bool, err error)
}
