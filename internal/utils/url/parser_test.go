package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestValidateNotSSRF(t *testing.T) {
	blocked := []string{
		"http://localhost/e",
		"http://127.0.0.1/e",
		"http://10.0.0.5/e",
		"http://172.16.0.1/e",
		"http://192.168.1.1/e",
		"http://169.254.1.1/e",
		"http://0.0.0.0/e",
	}
	for _, u := range blocked {
		if err := ValidateNotSSRF(u); err == nil {
			t.Fatalf("expected %s to be blocked", u)
		}
	}

	allowed := []string{
		"https://embed.example.com/e/abc",
		"http://8.8.8.8/e",
		"https://172.32.0.1/e",
		"https://192.169.0.1/e",
	}
	for _, u := range allowed {
		if err := ValidateNotSSRF(u); err != nil {
			t.Fatalf("expected %s to be allowed, got %v", u, err)
		}
	}
}

func TestOrigin(t *testing.T) {
	got, err := Origin("https://player.example.com/iframe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://player.example.com" {
		t.Fatalf("got %q", got)
	}
}
