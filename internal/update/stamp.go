package update

import "time"

const (
	fullLayout = "2006-01-02T15:04:05"
	dateLayout = "2006-01-02"
)

// Stamp is the run timestamp, captured once and reused for every derived name.
type Stamp struct {
	t time.Time
}

// NewStamp wraps t.
func NewStamp(t time.Time) Stamp { return Stamp{t: t} }

// Time returns the captured instant.
func (s Stamp) Time() time.Time { return s.t }

// Full is the second-precision timestamp embedded in commit and tag messages.
func (s Stamp) Full() string { return s.t.Format(fullLayout) }

// Date is the tag name.
func (s Stamp) Date() string { return s.t.Format(dateLayout) }

// LogFileName names the tools' log file for this run.
func (s Stamp) LogFileName() string { return s.Full() + "_logs" }

// CommitMessage is the message of the data commit.
func (s Stamp) CommitMessage() string { return "Updating SorryDB at " + s.Full() }

// TagMessage is the annotation of the date tag.
func (s Stamp) TagMessage() string { return "Database update on " + s.Full() }
