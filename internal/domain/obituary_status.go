package domain

import "time"

// ObituaryStatus is the lifecycle state of an obituary
type ObituaryStatus string

const (
	StatusPending      ObituaryStatus = "pending"
	StatusApproved     ObituaryStatus = "approved"
	StatusPublished    ObituaryStatus = "published"
	StatusMemorialized ObituaryStatus = "memorialized"
	StatusArchived     ObituaryStatus = "archived"
	StatusRejected     ObituaryStatus = "rejected"
)

// Eligibility windows
const (
	// MemorializeAfter is how long a page stays live before it becomes a read-only memorial.
	// The same window gates the appreciation message.
	MemorializeAfter = 30 * 24 * time.Hour
	// ExportAfterMonths gates the archive export and the renewal notice (calendar months).
	ExportAfterMonths = 11
)

// transitions lists the directed edges of the lifecycle
var transitions = map[ObituaryStatus][]ObituaryStatus{
	StatusPending:      {StatusApproved, StatusPublished, StatusRejected},
	StatusApproved:     {StatusPublished},
	StatusPublished:    {StatusMemorialized},
	StatusMemorialized: {StatusArchived},
}

// AllStatuses returns every reachable status in lifecycle order
func AllStatuses() []ObituaryStatus {
	return []ObituaryStatus{
		StatusPending,
		StatusApproved,
		StatusPublished,
		StatusMemorialized,
		StatusArchived,
		StatusRejected,
	}
}

// Valid reports whether s is a known status
func (s ObituaryStatus) Valid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s ObituaryStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsPublic reports whether records in this status are visible to everyone
func (s ObituaryStatus) IsPublic() bool {
	return s == StatusPublished || s == StatusMemorialized || s == StatusArchived
}

// CanTransition reports whether from -> to is an edge of the lifecycle
func CanTransition(from, to ObituaryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf returns every status that may transition into to
func SourcesOf(to ObituaryStatus) []ObituaryStatus {
	var sources []ObituaryStatus
	for _, from := range AllStatuses() {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// MemorializeDue reports whether a page published at base must be memorialized at now
func MemorializeDue(base, now time.Time) bool {
	return now.Sub(base) >= MemorializeAfter
}

// ExportAvailableAt returns the first instant an archive export is allowed for ref
func ExportAvailableAt(ref time.Time) time.Time {
	return ref.AddDate(0, ExportAfterMonths, 0)
}
