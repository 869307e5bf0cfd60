package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForm_PasswordChangeRechecksConfirmation(t *testing.T) {
	f := NewForm()
	f.SetPassword("Abcdef1!")
	r := f.SetConfirmPassword("Abcdef1!")
	require.True(t, r.Valid)

	f.SetPassword("Abcdef2!")
	r, ok := f.Result(FieldConfirmPassword)
	require.True(t, ok)
	assert.False(t, r.Valid)
	assert.Equal(t, MsgPasswordMismatch, r.Message)

	f.SetPassword("Abcdef1!")
	r, _ = f.Result(FieldConfirmPassword)
	assert.True(t, r.Valid)
}

func TestForm_PasswordChangeLeavesEmptyConfirmationUntouched(t *testing.T) {
	f := NewForm()
	f.SetPassword("Abcdef1!")
	_, ok := f.Result(FieldConfirmPassword)
	assert.False(t, ok, "empty confirmation must not be validated by a password change")
}

func TestForm_NoOtherCrossFieldRevalidation(t *testing.T) {
	f := NewForm()
	f.SetUsername("al")
	f.SetEmail("bob@x.com")
	r, _ := f.Result(FieldUsername)
	assert.False(t, r.Valid, "username result must be unaffected by email edits")
	_, ok := f.Result(FieldPassword)
	assert.False(t, ok)
}

func TestForm_Submit(t *testing.T) {
	f := NewForm()
	f.SetUsername("bob")
	f.SetEmail("bob@x.com")
	f.SetPassword("Abcdef1!")
	f.SetConfirmPassword("Abcdef1!")
	assert.False(t, f.Submit().Valid())
	r, _ := f.Result(FieldAgreedToTerms)
	assert.Equal(t, MsgTermsNotAgreed, r.Message)

	f.SetAgreed(true)
	assert.True(t, f.Submit().Valid())
	assert.Equal(t, Input{
		Username:        "bob",
		Email:           "bob@x.com",
		Password:        "Abcdef1!",
		ConfirmPassword: "Abcdef1!",
		AgreedToTerms:   true,
	}, f.Input())
}
