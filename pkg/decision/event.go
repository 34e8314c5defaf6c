package decision

import (
	"time"

	"github.com/jingkaihe/pkgveil/pkg/api"
)

// FilterEvent describes one query that was filtered. Session and Strategy
// identify the hook installation that served it.
type FilterEvent struct {
	Session  string
	Strategy string
	UID      api.UID
	Caller   string
	Target   string
	UserID   int
	At       time.Time
}
