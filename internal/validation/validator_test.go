package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"", false},
		{"ab", false},
		{"  ab  ", false},
		{"bob", true},
		{" bob ", true},
		{"жук", true},
	}
	for _, tt := range tests {
		r := Username(tt.in)
		assert.Equal(t, tt.valid, r.Valid, "Username(%q)", tt.in)
		if !tt.valid {
			assert.Equal(t, MsgUsernameTooShort, r.Message)
		}
	}
}

func TestEmail(t *testing.T) {
	valid := []string{"a@x.com", "bob.smith@mail.example.org", "x+tag@d.io"}
	invalid := []string{"", "a@x", "ax.com", "a b@x.com", "a@@x.com", "@x.com", "a@.com"}
	for _, v := range valid {
		assert.True(t, Email(v).Valid, "Email(%q)", v)
	}
	for _, v := range invalid {
		r := Email(v)
		assert.False(t, r.Valid, "Email(%q)", v)
		assert.Equal(t, MsgEmailInvalid, r.Message)
	}
}

func TestPassword_ShortAlwaysFailsOnLength(t *testing.T) {
	for _, v := range []string{"", "A", "Ab1!", "Abcde1!", "!!!!!!!", "ABCDEFG"} {
		r := Password(v)
		require.False(t, r.Valid, "Password(%q)", v)
		assert.Equal(t, MsgPasswordLength, r.Message, "Password(%q)", v)
	}
}

func TestPassword_FirstUnmetRuleWins(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcdefgh", MsgPasswordUppercase},
		{"abcdefg1!", MsgPasswordUppercase},
		{"Abcdefgh", MsgPasswordDigit},
		{"Abcdefg!", MsgPasswordDigit},
		{"Abcdefg1", MsgPasswordSpecial},
		{"ABCDEFG12345", MsgPasswordSpecial},
		{"Abcdef1?", MsgPasswordSpecial},
		{"Abcdef1!", ""},
		{"Zz9*zzzz", ""},
	}
	for _, tt := range tests {
		r := Password(tt.in)
		assert.Equal(t, tt.want == "", r.Valid, "Password(%q)", tt.in)
		assert.Equal(t, tt.want, r.Message, "Password(%q)", tt.in)
	}
}

func TestPassword_EverySpecialCharacterAccepted(t *testing.T) {
	for _, c := range SpecialCharacters {
		v := "Abcdef1" + string(c)
		assert.True(t, Password(v).Valid, "Password(%q)", v)
	}
}

func TestConfirmPassword(t *testing.T) {
	assert.True(t, ConfirmPassword("Abcdef1!", "Abcdef1!").Valid)
	assert.False(t, ConfirmPassword("abcdef1!", "Abcdef1!").Valid)
	assert.False(t, ConfirmPassword("Abcdef1! ", "Abcdef1!").Valid)
	assert.False(t, ConfirmPassword("", "Abcdef1!").Valid)
	assert.Equal(t, MsgPasswordMismatch, ConfirmPassword("x", "y").Message)
}

func TestValidate_AllValid(t *testing.T) {
	in := Input{
		Username:        "bob",
		Email:           "bob@x.com",
		Password:        "Abcdef1!",
		ConfirmPassword: "Abcdef1!",
		AgreedToTerms:   true,
	}
	rs := Validate(in)
	require.Len(t, rs, 5)
	assert.True(t, rs.Valid())
	assert.NoError(t, rs.Err())
}

func TestValidate_EmptyInputFailsEveryField(t *testing.T) {
	rs := Validate(Input{})
	assert.False(t, rs.Valid())
	// An empty confirmation equals an empty password.
	failed := rs.Failed()
	require.Len(t, failed, 4)

	err := rs.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Len(t, f.Results, 4)
	assert.True(t, strings.Contains(err.Error(), MsgTermsNotAgreed))
}

func TestValidate_Idempotent(t *testing.T) {
	in := Input{Username: "al", Email: "al@x", Password: "Abcdefgh", ConfirmPassword: "nope"}
	first := Validate(in)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, Validate(in))
	}
}

func TestValidateLogin(t *testing.T) {
	rs := ValidateLogin(LoginInput{})
	assert.False(t, rs.Valid())
	r, ok := rs.Get(FieldIdentifier)
	require.True(t, ok)
	assert.Equal(t, MsgLoginFieldsMissing, r.Message)

	assert.False(t, ValidateLogin(LoginInput{Identifier: "a@x.com"}).Valid())
	assert.True(t, ValidateLogin(LoginInput{Identifier: "a@x.com", Password: "p"}).Valid())
}
