package domain

// Severity of an alert.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertKind distinguishes tick-generated risk alerts from operator actions.
type AlertKind string

const (
	AlertRisk      AlertKind = "risk"
	AlertAction    AlertKind = "action"
	AlertBroadcast AlertKind = "broadcast"
)

// Alert is one entry in the alert log. Never mutated after creation.
type Alert struct {
	Time     string    `json:"time"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	Kind     AlertKind `json:"type"`
}
