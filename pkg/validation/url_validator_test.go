package validation

import (
	"errors"
	"testing"

	apperrors "github.com/anime-shed/street-inspector-go/internal/errors"
)

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Type != apperrors.ErrorTypeValidation {
		t.Errorf("Expected validation error, got %s", appErr.Type)
	}
	return appErr.Message
}

func TestValidateImageURL_Default(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		message string // empty means valid
	}{
		{"https camera feed", "https://cams.example.com/streets/main-st.jpg", ""},
		{"http with port", "HTTP://cams.example.com:8443/snapshot.png", ""},
		{"public IP literal", "http://93.184.216.34/frame.gif", ""},
		{"empty", "", "URL cannot be empty"},
		{"blank", " \t\n", "URL cannot be empty"},
		{"unparseable", "://missing-scheme", "Invalid URL format"},
		{"relative path", "street.jpg", "URL scheme not allowed"},
		{"ftp", "ftp://cams.example.com/a.jpg", "URL scheme not allowed"},
		{"file", "file:///var/www/a.jpg", "URL scheme not allowed"},
		{"data URI", "data:image/png;base64,iVBORw0KGgo=", "URL scheme not allowed"},
		{"no host", "http:///a.jpg", "URL must have a valid host"},
		{"bare scheme", "https://", "URL must have a valid host"},
		{"private range", "http://192.168.1.20/a.jpg", "URL points to a private address"},
		{"loopback", "http://127.0.0.1:8080/a.jpg", "URL points to a private address"},
		{"localhost", "http://LOCALHOST/a.jpg", "URL points to a private address"},
		{"ipv6 loopback", "http://[::1]/a.jpg", "URL points to a private address"},
		{"metadata endpoint", "http://169.254.169.254/latest/meta-data", "URL points to a private address"},
		{"unspecified", "http://0.0.0.0/a.jpg", "URL points to a private address"},
	}

	validator := NewURLValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateImageURL(tt.url)
			if tt.message == "" {
				if err != nil {
					t.Errorf("Expected %q to pass, got %v", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected %q to fail with %q", tt.url, tt.message)
			}
			if got := validationMessage(t, err); got != tt.message {
				t.Errorf("Expected %q, got %q", tt.message, got)
			}
		})
	}
}

func TestValidateImageURL_AllowPrivateAddresses(t *testing.T) {
	validator := NewURLValidator().AllowPrivateAddresses(true)
	for _, u := range []string{
		"http://192.168.1.20/a.jpg",
		"http://localhost:9000/bucket/a.png",
		"http://[::1]/a.jpg",
	} {
		if err := validator.ValidateImageURL(u); err != nil {
			t.Errorf("Expected %q to pass when private addresses are allowed, got %v", u, err)
		}
	}
	if err := validator.ValidateImageURL("ftp://192.168.1.20/a.jpg"); err == nil {
		t.Error("Allowing private addresses must not relax the scheme check")
	}
}

func TestValidateImageURL_RestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https"}, []string{"cams.example.com", "res.cloudinary.com"})

	for _, u := range []string{
		"https://cams.example.com/a.jpg",
		"https://RES.Cloudinary.com:443/demo/image/upload/a.jpg",
	} {
		if err := validator.ValidateImageURL(u); err != nil {
			t.Errorf("Expected %q to pass, got %v", u, err)
		}
	}

	err := validator.ValidateImageURL("https://elsewhere.example.org/a.jpg")
	if err == nil {
		t.Fatal("Expected unknown host to fail")
	}
	if got := validationMessage(t, err); got != "URL host not allowed" {
		t.Errorf("Expected 'URL host not allowed', got %q", got)
	}

	if err := validator.ValidateImageURL("http://cams.example.com/a.jpg"); err == nil {
		t.Error("Expected http to be rejected when only https is allowed")
	}
}
