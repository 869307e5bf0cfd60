package models

import (
	"errors"
	"fmt"
)

// OutcomeKind enumerates the normalized results of one authentication attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeInvalidCredential
	OutcomeNotFound
	OutcomeCancelled
	OutcomeExternalError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalidCredential:
		return "invalid_credential"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExternalError:
		return "external_error"
	default:
		return "unknown"
	}
}

// Outcome is the Auth Outcome of one attempt, whichever method produced it.
type Outcome struct {
	Kind OutcomeKind
	// DisplayName is set on Success when the method yields one.
	DisplayName string
	// Message carries the collaborator's text on ExternalError.
	Message string
}

// Success builds a successful outcome.
func Success(displayName string) Outcome {
	return Outcome{Kind: OutcomeSuccess, DisplayName: displayName}
}

// InvalidCredential builds an outcome for a password mismatch.
func InvalidCredential() Outcome { return Outcome{Kind: OutcomeInvalidCredential} }

// NotFound builds an outcome for a missing account record.
func NotFound() Outcome { return Outcome{Kind: OutcomeNotFound} }

// Cancelled builds an outcome for a user-cancelled federated prompt.
func Cancelled() Outcome { return Outcome{Kind: OutcomeCancelled} }

// ExternalError builds an outcome carrying a collaborator message verbatim.
func ExternalError(message string) Outcome {
	return Outcome{Kind: OutcomeExternalError, Message: message}
}

// IsSuccess reports whether the outcome is Success.
func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		if o.DisplayName == "" {
			return "success"
		}
		return fmt.Sprintf("success(%s)", o.DisplayName)
	case OutcomeExternalError:
		return fmt.Sprintf("external_error(%s)", o.Message)
	default:
		return o.Kind.String()
	}
}

// Method is the authentication method of an attempt.
type Method string

const (
	MethodRegister  Method = "password-register"
	MethodLogin     Method = "password-login"
	MethodFederated Method = "federated"
)

// AttemptState is the position of an attempt in its state machine.
type AttemptState int

const (
	AttemptIdle AttemptState = iota
	AttemptAttempting
	AttemptDone
)

// ErrAttemptState is returned when an attempt transition is not allowed.
var ErrAttemptState = errors.New("invalid attempt transition")

// Attempt tracks one invocation: Idle -> Attempting -> Done.
// A terminal outcome can be recorded only once.
type Attempt struct {
	Method  Method
	state   AttemptState
	outcome Outcome
}

// NewAttempt returns an idle attempt for method.
func NewAttempt(method Method) *Attempt {
	return &Attempt{Method: method}
}

// Begin moves the attempt from Idle to Attempting.
func (a *Attempt) Begin() error {
	if a.state != AttemptIdle {
		return fmt.Errorf("%w: begin from state %d", ErrAttemptState, a.state)
	}
	a.state = AttemptAttempting
	return nil
}

// Finish records the terminal outcome.
func (a *Attempt) Finish(out Outcome) error {
	if a.state != AttemptAttempting {
		return fmt.Errorf("%w: finish from state %d", ErrAttemptState, a.state)
	}
	a.state = AttemptDone
	a.outcome = out
	return nil
}

// State returns the current state.
func (a *Attempt) State() AttemptState { return a.state }

// Outcome returns the recorded outcome and whether the attempt is done.
func (a *Attempt) Outcome() (Outcome, bool) {
	return a.outcome, a.state == AttemptDone
}

// ErrCancelled is returned by a federated flow when the user dismisses the
// provider prompt. It is not a failure of the system.
var ErrCancelled = errors.New("sign-in cancelled by user")
