package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCommand is returned for inbound frames that name no known action.
var ErrUnknownCommand = errors.New("unknown command")

// Action is an operator command sent by a subscriber.
type Action string

const (
	ActionAuthorizeEvacuation Action = "AUTHORIZE_EVACUATION"
	ActionDeployWarning       Action = "DEPLOY_WARNING"
	ActionEmergencyBroadcast  Action = "EMERGENCY_BROADCAST"
)

// legacyAuthorize is the bare token older dashboards send for evacuation.
const legacyAuthorize = "AUTHORIZE"

// OperatorAction describes the alert and outbound notice an action produces.
type OperatorAction struct {
	Notice   string // outbound alert action name
	Message  string
	Severity Severity
	Kind     AlertKind
}

var operatorActions = map[Action]OperatorAction{
	ActionAuthorizeEvacuation: {
		Notice:   "EVACUATION_AUTHORIZED",
		Message:  "EVACUATION AUTHORIZED by Commander",
		Severity: SeverityCritical,
		Kind:     AlertAction,
	},
	ActionDeployWarning: {
		Notice:   "WARNING_DEPLOYED",
		Message:  "Warning deployed to all zones",
		Severity: SeverityHigh,
		Kind:     AlertAction,
	},
	ActionEmergencyBroadcast: {
		Notice:   "EMERGENCY_BROADCAST",
		Message:  "Emergency broadcast sent to all users",
		Severity: SeverityCritical,
		Kind:     AlertBroadcast,
	},
}

// Describe returns the alert template for a, and false for unknown actions.
func (a Action) Describe() (OperatorAction, bool) {
	op, ok := operatorActions[a]
	return op, ok
}

// CommandMessage is the structured inbound control frame.
type CommandMessage struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// ParseCommand decodes an inbound frame. JSON frames must have type
// "command" and a known action. Plain-text frames must equal an action name
// exactly (case-insensitive, surrounding whitespace ignored).
func ParseCommand(data []byte) (Action, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var msg CommandMessage
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			return "", fmt.Errorf("parse command: %w", err)
		}
		if msg.Type != "command" {
			return "", fmt.Errorf("%w: message type %q", ErrUnknownCommand, msg.Type)
		}
		return normalizeAction(string(msg.Action))
	}
	return normalizeAction(text)
}

func normalizeAction(s string) (Action, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == legacyAuthorize {
		return ActionAuthorizeEvacuation, nil
	}
	a := Action(s)
	if _, ok := operatorActions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return a, nil
}
