package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestRequestIDsAreOrderedULIDs(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id := Request()
		if _, err := ulid.ParseStrict(id); err != nil {
			t.Fatalf("invalid request id %q: %v", id, err)
		}
		if id <= prev {
			t.Fatalf("request ids not strictly increasing: %q after %q", id, prev)
		}
		prev = id
	}
}
