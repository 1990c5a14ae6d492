package cli

import "time"

// nowUnixMicro is the wall-clock instant wsstore-inspect uses for every
// expiry-sensitive query. The CLI has no notion of a test clock: that
// override exists for deterministic sync-engine tests, not operational
// inspection.
func nowUnixMicro() int64 {
	return time.Now().UnixMicro()
}
