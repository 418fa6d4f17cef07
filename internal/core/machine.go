package core

import (
	"strings"
)

// State is the position of a user's conversation.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingPIN
	StateAuthenticated
	StateCollecting
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAwaitingPIN:
		return "AWAITING_PIN"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateCollecting:
		return "COLLECTING"
	}
	return "UNKNOWN"
}

// Input is the classified form of an inbound event as seen by the
// transition function.
type Input struct {
	Text  string
	Media bool
}

// Action is the side effect the conversation must run for a transition.
type Action int

const (
	ActionIgnore Action = iota
	ActionPromptPIN
	ActionRejectPIN
	ActionAcceptPIN
	ActionShowSchedule
	ActionStartCollecting
	ActionInvalidOption
	ActionFinalize
	ActionAppendNote
	ActionStoreArtifact
)

func (a Action) String() string {
	return [...]string{
		"ignore", "prompt_pin", "reject_pin", "accept_pin", "show_schedule",
		"start_collecting", "invalid_option", "finalize", "append_note", "store_artifact",
	}[a]
}

// Transition is the outcome of one (state, input) pair.
type Transition struct {
	Action Action
	Next   State
}

const (
	pinLength           = 6
	menuViewSchedule    = "1"
	menuDocumentVisit   = "2"
	finalizeShortcut    = "0"
	finalizeExitKeyword = "sair"
)

// IsValidPIN accepts exactly six ASCII digits.
func IsValidPIN(s string) bool {
	if len(s) != pinLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsFinalizeKeyword matches "0" or "sair", ignoring case and surrounding space.
func IsFinalizeKeyword(s string) bool {
	s = strings.TrimSpace(s)
	return s == finalizeShortcut || strings.EqualFold(s, finalizeExitKeyword)
}

// Decide is the conversation transition table.  It performs no I/O; the
// caller runs the returned action.
func Decide(state State, in Input) Transition {
	text := strings.TrimSpace(in.Text)

	if state == StateCollecting {
		switch {
		case in.Media:
			return Transition{ActionStoreArtifact, StateCollecting}
		case text == "":
			return Transition{ActionIgnore, state}
		case IsFinalizeKeyword(text):
			return Transition{ActionFinalize, StateAuthenticated}
		case IsValidPIN(text):
			return Transition{ActionAcceptPIN, StateAuthenticated}
		default:
			return Transition{ActionAppendNote, StateCollecting}
		}
	}

	// Outside collection mode media and empty text are noise.
	if in.Media || text == "" {
		return Transition{ActionIgnore, state}
	}

	switch state {
	case StateUnauthenticated:
		return Transition{ActionPromptPIN, StateAwaitingPIN}
	case StateAwaitingPIN:
		if IsValidPIN(text) {
			return Transition{ActionAcceptPIN, StateAuthenticated}
		}
		return Transition{ActionRejectPIN, StateAwaitingPIN}
	case StateAuthenticated:
		switch {
		case text == menuViewSchedule:
			return Transition{ActionShowSchedule, StateAuthenticated}
		case text == menuDocumentVisit:
			return Transition{ActionStartCollecting, StateCollecting}
		case IsValidPIN(text):
			return Transition{ActionAcceptPIN, StateAuthenticated}
		default:
			return Transition{ActionInvalidOption, StateAuthenticated}
		}
	}
	return Transition{ActionIgnore, state}
}
