// Package alertlog keeps the bounded alert history shown to operators.
package alertlog

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

// Log limits and per-tick emission probabilities.
const (
	Capacity = 30
	Exposed  = 10

	CriticalProbability = 0.015
	HighProbability     = 0.008
)

const timeLayout = "15:04"

// Log is a ring buffer of alerts. Only the tick loop writes to it.
type Log struct {
	rng     domain.Rand
	clock   clockwork.Clock
	entries []domain.Alert
}

// New creates an empty log. Times are rendered in clock's location.
func New(r domain.Rand, clock clockwork.Clock) *Log {
	return &Log{rng: r, clock: clock, entries: make([]domain.Alert, 0, Capacity+1)}
}

// Append adds an alert, evicting the oldest past Capacity.
func (l *Log) Append(a domain.Alert) {
	if a.Time == "" {
		a.Time = l.clock.Now().Format(timeLayout)
	}
	l.entries = append(l.entries, a)
	if n := len(l.entries); n > Capacity {
		copy(l.entries, l.entries[n-Capacity:])
		l.entries = l.entries[:Capacity]
	}
}

// ObserveSectors draws a risk alert for each CRITICAL or HIGH sector with a
// small probability so a sustained condition does not flood the log. It
// returns the alerts appended.
func (l *Log) ObserveSectors(risks []domain.SectorRisk) []domain.Alert {
	var added []domain.Alert
	for _, r := range risks {
		var a domain.Alert
		switch {
		case r.Status == domain.SectorCritical && l.rng.Float64() < CriticalProbability:
			a = domain.Alert{
				Message:  fmt.Sprintf("%s - Risk Level CRITICAL", r.Name),
				Severity: domain.SeverityCritical,
				Kind:     domain.AlertRisk,
			}
		case r.Status == domain.SectorHigh && l.rng.Float64() < HighProbability:
			a = domain.Alert{
				Message:  fmt.Sprintf("%s - Risk Updated to HIGH", r.Name),
				Severity: domain.SeverityHigh,
				Kind:     domain.AlertRisk,
			}
		default:
			continue
		}
		l.Append(a)
		added = append(added, l.entries[len(l.entries)-1])
	}
	return added
}

// Operator appends the alert for an operator action unconditionally.
func (l *Log) Operator(op domain.OperatorAction) domain.Alert {
	l.Append(domain.Alert{Message: op.Message, Severity: op.Severity, Kind: op.Kind})
	return l.entries[len(l.entries)-1]
}

// Len is the number of retained alerts.
func (l *Log) Len() int { return len(l.entries) }

// Recent returns a copy of the last Exposed alerts, oldest first.
func (l *Log) Recent() []domain.Alert {
	start := max(0, len(l.entries)-Exposed)
	out := make([]domain.Alert, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}
