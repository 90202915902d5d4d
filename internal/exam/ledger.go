package exam

import "sync"

// AnswerSource is read access to recorded answers.
type AnswerSource interface {
	Get(questionID int64) string
}

// Ledger maps question ids to the user's current raw answer. Entries are never
// removed; clearing an input is stored as an empty string.
type Ledger struct {
	mu      sync.RWMutex
	answers map[int64]string
}

var _ AnswerSource = (*Ledger)(nil)

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{answers: make(map[int64]string)}
}

// Set upserts the answer for a question. Overwrites are silent.
func (l *Ledger) Set(questionID int64, value string) {
	l.mu.Lock()
	l.answers[questionID] = value
	l.mu.Unlock()
}

// Get returns the stored answer or "" when the question was never answered.
func (l *Ledger) Get(questionID int64) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.answers[questionID]
}

// Has reports whether the question has an entry (possibly empty).
func (l *Ledger) Has(questionID int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.answers[questionID]
	return ok
}

// Len returns the number of questions with an entry.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.answers)
}

// Snapshot copies the ledger so assembly works on a frozen view.
func (l *Ledger) Snapshot() Answers {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Answers, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}

// Answers is an immutable copy of a ledger.
type Answers map[int64]string

// Get returns the answer or "".
func (a Answers) Get(questionID int64) string {
	return a[questionID]
}
