package validation

import (
	"errors"
	"testing"
)

func TestProviderNameAndTheme(t *testing.T) {
	t.Parallel()

	type input struct {
		Provider string `validate:"provider_name"`
		Theme    string `validate:"theme"`
	}
	tests := []struct {
		name    string
		in      input
		wantErr bool
	}{
		{"valid", input{"google", "dark"}, false},
		{"upper provider", input{"Google", "light"}, true},
		{"bad theme", input{"google", "blue"}, true},
		{"empty provider", input{"", "light"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFieldMessages(t *testing.T) {
	t.Parallel()

	type form struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}
	messages := map[string]string{
		"Email.email":  "Invalid email format",
		"Password.min": "Password must be at least 6 characters",
	}

	got := FieldMessages(Validate.Struct(form{Email: "nope", Password: "123"}), messages)
	if got["Email"] != "Invalid email format" || got["Password"] != "Password must be at least 6 characters" {
		t.Errorf("FieldMessages() = %v", got)
	}

	got = FieldMessages(Validate.Struct(form{Email: "", Password: "123456"}), messages)
	if got["Email"] != "Email is invalid" {
		t.Errorf("fallback message = %q", got["Email"])
	}

	if got := FieldMessages(errors.New("other"), messages); got != nil {
		t.Errorf("FieldMessages(non-validation) = %v, want nil", got)
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()
	if got := SanitizeText("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("SanitizeText() = %q", got)
	}
}
