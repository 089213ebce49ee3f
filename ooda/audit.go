package ooda

import (
	"fmt"
	"time"

	"github.com/web3guy0/tradegate/risk"
)

// AuditEntry is one append-only record of a state transition or notable
// event inside a cycle.
type AuditEntry struct {
	At         time.Time            `json:"at"`
	From       State                `json:"from"`
	To         State                `json:"to"`
	Phase      Phase                `json:"phase,omitempty"`
	Reason     string               `json:"reason"`
	Assessment *risk.RiskAssessment `json:"assessment,omitempty"`
}

func (e AuditEntry) String() string {
	return fmt.Sprintf("%s %s->%s: %s", e.At.Format(time.RFC3339Nano), e.From, e.To, e.Reason)
}

// Trail is the per-cycle audit trail. It only grows.
type Trail struct {
	entries []AuditEntry
}

func (t *Trail) append(e AuditEntry) {
	t.entries = append(t.entries, e)
}

// Entries returns a copy of the recorded trail.
func (t *Trail) Entries() []AuditEntry {
	out := make([]AuditEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len is the number of recorded entries.
func (t *Trail) Len() int { return len(t.entries) }

// Strings renders the trail for logs and status endpoints.
func (t *Trail) Strings() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.String())
	}
	return out
}
