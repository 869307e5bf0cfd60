package validation

// Form holds the registration input of one screen together with the latest
// result of each field. Setters overwrite a field and re-validate it; the
// only cross-field rule is that a password change re-checks a non-empty
// confirmation.
type Form struct {
	input   Input
	results map[Field]Result
}

// NewForm returns an empty form with no results yet.
func NewForm() *Form {
	return &Form{results: make(map[Field]Result)}
}

// Input returns the current field values.
func (f *Form) Input() Input { return f.input }

// SetUsername updates the username and returns its result.
func (f *Form) SetUsername(v string) Result {
	f.input.Username = v
	return f.store(Username(v))
}

// SetEmail updates the email and returns its result.
func (f *Form) SetEmail(v string) Result {
	f.input.Email = v
	return f.store(Email(v))
}

// SetPassword updates the password and returns its result. A non-empty
// confirmation is re-checked against the new value.
func (f *Form) SetPassword(v string) Result {
	f.input.Password = v
	if f.input.ConfirmPassword != "" {
		f.store(ConfirmPassword(f.input.ConfirmPassword, v))
	}
	return f.store(Password(v))
}

// SetConfirmPassword updates the confirmation and returns its result.
func (f *Form) SetConfirmPassword(v string) Result {
	f.input.ConfirmPassword = v
	return f.store(ConfirmPassword(v, f.input.Password))
}

// SetAgreed updates the terms agreement and returns its result.
func (f *Form) SetAgreed(v bool) Result {
	f.input.AgreedToTerms = v
	return f.store(AgreedToTerms(v))
}

// Result returns the latest result for field, if it has been validated.
func (f *Form) Result(field Field) (Result, bool) {
	r, ok := f.results[field]
	return r, ok
}

// Submit validates every field and returns the full result set.
func (f *Form) Submit() Results {
	rs := Validate(f.input)
	for _, r := range rs {
		f.results[r.Field] = r
	}
	return rs
}

func (f *Form) store(r Result) Result {
	f.results[r.Field] = r
	return r
}
