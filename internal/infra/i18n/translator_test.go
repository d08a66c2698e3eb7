//go:build !integration

package i18n

import "testing"

func TestTranslator(t *testing.T) {
	content := []byte(`
payment:
  success: "To'lov qabul qilindi: %s (%d kun)"
card:
  added_without_bonus: "Karta saqlandi"
`)
	translator, err := newTranslatorFromBytes(content)
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("flattens nested keys with dots", func(t *testing.T) {
		got := translator.T("card.added_without_bonus")
		if got != "Karta saqlandi" {
			t.Errorf("T() = %q, want %q", got, "Karta saqlandi")
		}
	})

	t.Run("fills template verbs positionally", func(t *testing.T) {
		got := translator.T("payment.success", "Premium", 30)
		want := "To'lov qabul qilindi: Premium (30 kun)"
		if got != want {
			t.Errorf("T() = %q, want %q", got, want)
		}
	})

	t.Run("missing key falls back to the key itself", func(t *testing.T) {
		got := translator.T("nope.missing")
		if got != "nope.missing" {
			t.Errorf("T() = %q, want the key back", got)
		}
	})
}

func TestTranslatorEmbeddedLocales(t *testing.T) {
	tr, err := New("uz")
	if err != nil {
		t.Fatalf("New(uz) failed: %v", err)
	}
	for _, key := range []string{
		"payment.success",
		"card.activated_with_bonus",
		"card.added_without_bonus",
		"renewal.success",
		"renewal.failed",
		"cancel.done",
	} {
		if got := tr.T(key); got == key {
			t.Errorf("locale uz is missing key %q", key)
		}
	}
}
