package validate

import "testing"

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		v       Validator
		input   string
		wantErr bool
	}{
		{"required ok", Required(), "ana", false},
		{"required blank", Required(), "   ", true},
		{"max length counts runes", MaxLength(4), "ñañá", false},
		{"max length exceeded", MaxLength(3), "abcd", true},
		{"length exact", Length(5), "AB3DE", false},
		{"length wrong", Length(5), "AB3D", true},
		{"matches", Matches(`^[A-Z0-9]+$`, "bad"), "AB12", false},
		{"matches fails", Matches(`^[A-Z0-9]+$`, "bad"), "ab12", true},
		{"printable", Printable(), "hello world", false},
		{"printable newline", Printable(), "hello\nworld", true},
		{"http url", HTTPURL(), "https://example.com/cat.png", false},
		{"relative url", HTTPURL(), "/cat.png", true},
		{"javascript url", HTTPURL(), "javascript:alert(1)", true},
		{"uppercase", Uppercase(), "ABC", false},
		{"uppercase fails", Uppercase(), "AbC", true},
		{"compose first error wins", Compose(Required(), MaxLength(2)), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validator(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestFieldPrefixesName(t *testing.T) {
	err := Field("userName", Required())("")
	if err == nil || err.Error() != "userName: this field is required" {
		t.Errorf("Field error = %v", err)
	}
}
