package digest

import "sync"

// ledger remembers the local date of the last digest per subscriber.
type ledger struct {
	mu   sync.Mutex
	sent map[string]string
}

func newLedger() *ledger {
	return &ledger{sent: map[string]string{}}
}

// claim records day for email and reports whether it was not yet recorded.
func (l *ledger) claim(email, day string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sent[email] == day {
		return false
	}
	l.sent[email] = day
	return true
}

func (l *ledger) release(email, day string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sent[email] == day {
		delete(l.sent, email)
	}
}

// prune drops entries older than the given date. Dates compare as strings
// because they are formatted as YYYY-MM-DD.
func (l *ledger) prune(before string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for email, day := range l.sent {
		if day < before {
			delete(l.sent, email)
		}
	}
}
