package http

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestValidateIdentity(t *testing.T) {
	base := registerRequest{Name: "Asha Rao", Mobile: "9876543210"}

	t.Run("minimal valid", func(t *testing.T) {
		identity, errCode := validateIdentity(base)
		if errCode != "" {
			t.Fatalf("expected ok, got %s", errCode)
		}
		if identity.Name != "Asha Rao" || identity.Mobile != "9876543210" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if identity.Email != nil || identity.Class != nil {
			t.Fatalf("optional fields should be nil when absent")
		}
	})

	t.Run("full valid", func(t *testing.T) {
		req := base
		req.Email = " asha@example.com "
		req.Class = "Class 10"
		identity, errCode := validateIdentity(req)
		if errCode != "" {
			t.Fatalf("expected ok, got %s", errCode)
		}
		if identity.Email == nil || *identity.Email != "asha@example.com" {
			t.Fatalf("email not normalized: %+v", identity.Email)
		}
		if identity.Class == nil || *identity.Class != "Class 10" {
			t.Fatalf("class not kept: %+v", identity.Class)
		}
	})

	invalid := map[string]registerRequest{
		"empty name":          {Name: "", Mobile: "9876543210"},
		"one char name":       {Name: "A", Mobile: "9876543210"},
		"whitespace name":     {Name: "   ", Mobile: "9876543210"},
		"name too long":       {Name: strings.Repeat("a", 101), Mobile: "9876543210"},
		"short mobile":        {Name: "Asha Rao", Mobile: "12345"},
		"bad leading digit":   {Name: "Asha Rao", Mobile: "5876543210"},
		"eleven digits":       {Name: "Asha Rao", Mobile: "98765432100"},
		"mobile with letters": {Name: "Asha Rao", Mobile: "98765abc10"},
		"bad email":           {Name: "Asha Rao", Mobile: "9876543210", Email: "not-an-email"},
		"unknown class":       {Name: "Asha Rao", Mobile: "9876543210", Class: "Class 13"},
	}
	for name, req := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, errCode := validateIdentity(req); errCode == "" {
				t.Fatalf("expected validation error")
			}
		})
	}

	t.Run("error codes name the field", func(t *testing.T) {
		if _, code := validateIdentity(registerRequest{Name: "Asha Rao", Mobile: "12345"}); code != "invalid_mobile" {
			t.Fatalf("expected invalid_mobile, got %s", code)
		}
		if _, code := validateIdentity(registerRequest{Name: "", Mobile: "9876543210"}); code != "invalid_name" {
			t.Fatalf("expected invalid_name, got %s", code)
		}
	})
}

func pngPayload(size int) []byte {
	raw := make([]byte, size)
	copy(raw, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	return raw
}

func TestValidateScreenshot(t *testing.T) {
	t.Run("plain base64 gets a data url", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(pngPayload(64))
		dataURL, errCode := validateScreenshot(encoded)
		if errCode != "" {
			t.Fatalf("expected ok, got %s", errCode)
		}
		if !strings.HasPrefix(dataURL, "data:image/png;base64,") {
			t.Fatalf("unexpected data url prefix: %.40s", dataURL)
		}
	})

	t.Run("data url prefix is accepted", func(t *testing.T) {
		encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPayload(64))
		if _, errCode := validateScreenshot(encoded); errCode != "" {
			t.Fatalf("expected ok, got %s", errCode)
		}
	})

	t.Run("exactly at ceiling accepted", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(pngPayload(MaxScreenshotBytes))
		if _, errCode := validateScreenshot(encoded); errCode != "" {
			t.Fatalf("payload at the ceiling must pass, got %s", errCode)
		}
	})

	t.Run("one byte over rejected", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(pngPayload(MaxScreenshotBytes + 1))
		if _, errCode := validateScreenshot(encoded); errCode != "image_too_large" {
			t.Fatalf("expected image_too_large, got %s", errCode)
		}
	})

	t.Run("non-image rejected", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte("just some text, definitely not pixels"))
		if _, errCode := validateScreenshot(encoded); errCode != "invalid_image" {
			t.Fatalf("expected invalid_image, got %s", errCode)
		}
	})

	t.Run("broken base64 rejected", func(t *testing.T) {
		if _, errCode := validateScreenshot("%%%not-base64%%%"); errCode != "invalid_image" {
			t.Fatalf("expected invalid_image, got %s", errCode)
		}
	})

	t.Run("data url without comma rejected", func(t *testing.T) {
		if _, errCode := validateScreenshot("data:image/png;base64"); errCode != "invalid_image" {
			t.Fatalf("expected invalid_image, got %s", errCode)
		}
	})
}
