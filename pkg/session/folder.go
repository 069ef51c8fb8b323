package session

import (
	"fmt"
	"time"
)

// NewFolderName returns the storage folder name for a session epoch:
// "YYYY-MM-DD HH:MM:SS:mmm" in UTC. The colon-separated millisecond
// suffix matches the layout of previously stored data, so it is kept
// as-is even though colons are not legal path characters on every
// filesystem.
func NewFolderName(now time.Time) string {
	utc := now.UTC()
	return fmt.Sprintf("%s:%03d", utc.Format("2006-01-02 15:04:05"), utc.Nanosecond()/int(time.Millisecond))
}
