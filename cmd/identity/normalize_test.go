package identity

import "testing"

func TestValidEmail(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "a@b.com", want: true},
		{in: "  user@example.org  ", want: true},
		{in: "user.name+tag@sub.example.co", want: true},
		{in: "no-at-sign.com", want: false},
		{in: "no-domain-dot@host", want: false},
		{in: "two@@b.com", want: false},
		{in: "spaces in@b.com", want: false},
		{in: "", want: false},
	}

	for _, tc := range cases {
		if got := ValidEmail(tc.in); got != tc.want {
			t.Fatalf("ValidEmail(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestValidDeviceID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "dev123", want: true},
		{in: "abc", want: true},
		{in: "ab", want: false},
		{in: "  a  ", want: false},
		{in: "", want: false},
	}

	for _, tc := range cases {
		if got := ValidDeviceID(tc.in); got != tc.want {
			t.Fatalf("ValidDeviceID(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}
