// Package ids mints the X-Request-Id values stamped on outgoing API calls.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var source = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

// Request returns a fresh request identifier. IDs are ULIDs, so requests
// sorted by ID in server logs interleave in the order the client sent them.
func Request() string {
	source.Lock()
	defer source.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), source.entropy).String()
}
