package intake

import (
	"testing"
	"time"
)

func TestExtractClientType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"I was in a car accident", "new"},
		{"I'm an existing client", "existing"},
		{"my attorney told me to call", "existing"},
		{"a truck hit me yesterday", "new"},
		{"hello there", ""},
	}
	for _, c := range cases {
		if got := ExtractClientType(c.in); got != c.want {
			t.Fatalf("ExtractClientType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractFullName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My name is John Smith", "John Smith"},
		{"this is jane doe", "Jane Doe"},
		{"john smith", "John Smith"},
		{"Maria Garcia-Lopez", "Maria Garcia-Lopez"},
		{"it happened", ""},
		{"last week", ""},
		{"yes", ""},
	}
	for _, c := range cases {
		if got := ExtractFullName(c.in); got != c.want {
			t.Fatalf("ExtractFullName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"555-123-4567", "+15551234567"},
		{"you can call me at (555) 123 4567", "+15551234567"},
		{"1-555-123-4567", "+15551234567"},
		{"+1 555.123.4567", "+15551234567"},
		{"five five five one two three four five six seven", ""},
		{"my number", ""},
	}
	for _, c := range cases {
		if got := ExtractPhone(c.in); got != c.want {
			t.Fatalf("ExtractPhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john@gmail.com", "john@gmail.com"},
		{"john at gmail dot com", "john@gmail.com"},
		{"my email is John.Doe@Example.COM", "john.doe@example.com"},
		{"no email", ""},
	}
	for _, c := range cases {
		if got := ExtractEmail(c.in); got != c.want {
			t.Fatalf("ExtractEmail(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractDate(t *testing.T) {
	year := time.Now().Format("2006")
	cases := []struct {
		in   string
		want string
	}{
		{"today", "today"},
		{"it was yesterday", "yesterday"},
		{"last Friday I think", "last friday"},
		{"06/05/2025", "06/05/2025"},
		{"6/5/25", "06/05/2025"},
		{"6-5", "06/05/" + year},
		{"June 5th, 2025", "06/05/2025"},
		{"march 3", "03/03/" + year},
		{"sometime", ""},
	}
	for _, c := range cases {
		if got := ExtractDate(c.in); got != c.want {
			t.Fatalf("ExtractDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractLocation(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Phoenix, AZ", "Phoenix, AZ"},
		{"phoenix az", "Phoenix, AZ"},
		{"it was in downtown Phoenix", "Downtown Phoenix"},
		{"I was in an accident", ""},
		{"somewhere", ""},
	}
	for _, c := range cases {
		if got := ExtractLocation(c.in); got != c.want {
			t.Fatalf("ExtractLocation(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractIncident(t *testing.T) {
	if got := ExtractIncident("I was rear-ended by a truck."); got != "I was rear-ended by a truck" {
		t.Fatalf("expected trailing dot trimmed, got %q", got)
	}
	if got := ExtractIncident("someone damaged my property last week maybe"); got == "" {
		t.Fatalf("expected long description accepted")
	}
	if got := ExtractIncident("um"); got != "" {
		t.Fatalf("expected short non-incident rejected, got %q", got)
	}
}

func TestAffirmativeNegative(t *testing.T) {
	if !IsAffirmative("yes that's right") {
		t.Fatalf("expected affirmative")
	}
	if !IsAffirmative("okay sounds good") {
		t.Fatalf("expected affirmative")
	}
	if !IsNegative("no, my name is wrong") {
		t.Fatalf("expected negative")
	}
	if IsAffirmative("maybe") || IsNegative("maybe") {
		t.Fatalf("expected neither for ambiguous answer")
	}
}
