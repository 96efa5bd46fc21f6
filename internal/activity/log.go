package activity

// MaxEntries is the activity log capacity
const MaxEntries = 100

// Log is an append-only bounded log of activities, oldest first.
// Append copies, so a Log value can be shared between reducer states.
type Log struct {
	entries []Activity
}

// NewLog builds a log from existing entries, keeping only the newest MaxEntries
func NewLog(entries []Activity) Log {
	var l Log
	for _, a := range entries {
		l = l.Append(a)
	}
	return l
}

// Append returns a new log with a at the tail, evicting from the head past MaxEntries
func (l Log) Append(a Activity) Log {
	start := 0
	if len(l.entries)+1 > MaxEntries {
		start = len(l.entries) + 1 - MaxEntries
	}

	next := make([]Activity, 0, len(l.entries)-start+1)
	next = append(next, l.entries[start:]...)
	next = append(next, a)
	return Log{entries: next}
}

// Recent returns the last n entries, or all of them when fewer exist
func (l Log) Recent(n int) []Activity {
	if n <= 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Activity, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Entries returns a copy of all entries, oldest first
func (l Log) Entries() []Activity {
	return l.Recent(len(l.entries))
}

// Len returns the number of stored entries
func (l Log) Len() int {
	return len(l.entries)
}
