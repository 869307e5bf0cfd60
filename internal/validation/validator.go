// Package validation checks registration and login fields against the
// account rules and produces user-facing messages.
//
// All checks are pure: a Result depends only on its field, and for the
// confirm-password field on the current password.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field names a credential input field.
type Field string

const (
	FieldUsername        Field = "username"
	FieldEmail           Field = "email"
	FieldPassword        Field = "password"
	FieldConfirmPassword Field = "confirmPassword"
	FieldAgreedToTerms   Field = "agreedToTerms"
	FieldIdentifier      Field = "identifier"
)

// Messages reported for failing fields.
const (
	MsgUsernameTooShort   = "Username must be at least 3 characters long"
	MsgEmailInvalid       = "Please enter a valid email address"
	MsgPasswordLength     = "Password must be at least 8 characters long"
	MsgPasswordUppercase  = "Password must contain at least one uppercase letter"
	MsgPasswordDigit      = "Password must contain at least one number"
	MsgPasswordSpecial    = "Password must contain at least one special character (" + SpecialCharacters + ")"
	MsgPasswordMismatch   = "Passwords do not match"
	MsgTermsNotAgreed     = "You must agree to the terms and conditions"
	MsgLoginFieldsMissing = "Please fill in all fields"
)

const (
	// SpecialCharacters is the set a password must draw at least one character from.
	SpecialCharacters = "!@#$%^&*"

	minUsernameLength = 3
	minPasswordLength = 8
)

// ErrInvalidInput is wrapped by every *Failure.
var ErrInvalidInput = errors.New("invalid input")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Input is the user-entered registration state.
type Input struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	AgreedToTerms   bool
}

// LoginInput is the user-entered login state. Identifier is an email or,
// in username lookup mode, a username.
type LoginInput struct {
	Identifier string
	Password   string
}

// Result is the validation state of one field. Message is empty when Valid.
type Result struct {
	Field   Field
	Valid   bool
	Message string
}

func ok(f Field) Result               { return Result{Field: f, Valid: true} }
func fail(f Field, msg string) Result { return Result{Field: f, Message: msg} }

// Results holds one Result per field, in field order.
type Results []Result

// Valid reports whether every result is valid.
func (rs Results) Valid() bool {
	for _, r := range rs {
		if !r.Valid {
			return false
		}
	}
	return true
}

// Get returns the result for f.
func (rs Results) Get(f Field) (Result, bool) {
	for _, r := range rs {
		if r.Field == f {
			return r, true
		}
	}
	return Result{}, false
}

// Failed returns only the failing results.
func (rs Results) Failed() Results {
	var out Results
	for _, r := range rs {
		if !r.Valid {
			out = append(out, r)
		}
	}
	return out
}

// Failure is returned when input does not pass validation.
type Failure struct {
	Results Results
}

func (f *Failure) Error() string {
	msgs := make([]string, 0, len(f.Results))
	for _, r := range f.Results {
		msgs = append(msgs, string(r.Field)+": "+r.Message)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(msgs, "; ")
}

func (f *Failure) Unwrap() error { return ErrInvalidInput }

// Err returns a *Failure holding the failing results, or nil if all are valid.
func (rs Results) Err() error {
	failed := rs.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &Failure{Results: failed}
}

// Username requires at least three characters after trimming whitespace.
func Username(v string) Result {
	if utf8.RuneCountInString(strings.TrimSpace(v)) < minUsernameLength {
		return fail(FieldUsername, MsgUsernameTooShort)
	}
	return ok(FieldUsername)
}

// Email requires a local@domain.tld shape.
func Email(v string) Result {
	if !emailPattern.MatchString(v) {
		return fail(FieldEmail, MsgEmailInvalid)
	}
	return ok(FieldEmail)
}

// Password checks length, uppercase, digit and special character, in that
// order, and reports the first unmet rule.
func Password(v string) Result {
	if utf8.RuneCountInString(v) < minPasswordLength {
		return fail(FieldPassword, MsgPasswordLength)
	}
	if !strings.ContainsFunc(v, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		return fail(FieldPassword, MsgPasswordUppercase)
	}
	if !strings.ContainsFunc(v, func(r rune) bool { return r >= '0' && r <= '9' }) {
		return fail(FieldPassword, MsgPasswordDigit)
	}
	if !strings.ContainsAny(v, SpecialCharacters) {
		return fail(FieldPassword, MsgPasswordSpecial)
	}
	return ok(FieldPassword)
}

// ConfirmPassword requires an exact match with password.
func ConfirmPassword(confirm, password string) Result {
	if confirm != password {
		return fail(FieldConfirmPassword, MsgPasswordMismatch)
	}
	return ok(FieldConfirmPassword)
}

// AgreedToTerms requires the terms checkbox to be set.
func AgreedToTerms(v bool) Result {
	if !v {
		return fail(FieldAgreedToTerms, MsgTermsNotAgreed)
	}
	return ok(FieldAgreedToTerms)
}

// Validate checks every registration field of in.
func Validate(in Input) Results {
	return Results{
		Username(in.Username),
		Email(in.Email),
		Password(in.Password),
		ConfirmPassword(in.ConfirmPassword, in.Password),
		AgreedToTerms(in.AgreedToTerms),
	}
}

// ValidateLogin requires both login fields to be non-empty.
func ValidateLogin(in LoginInput) Results {
	rs := Results{ok(FieldIdentifier), ok(FieldPassword)}
	if in.Identifier == "" {
		rs[0] = fail(FieldIdentifier, MsgLoginFieldsMissing)
	}
	if in.Password == "" {
		rs[1] = fail(FieldPassword, MsgLoginFieldsMissing)
	}
	return rs
}
