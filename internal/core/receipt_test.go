package core

import (
	"errors"
	"testing"
)

func TestEncodeDecodeReceipt(t *testing.T) {
	body := []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'p', 'g'}
	s := EncodeReceipt("image/jpeg", body)
	if !IsEmbeddedReceipt(s) {
		t.Fatalf("expected embedded payload, got %q", s)
	}
	mt, got, err := DecodeReceipt(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mt != "image/jpeg" || string(got) != string(body) {
		t.Fatalf("round trip mismatch: %q %v", mt, got)
	}
}

func TestDecodeReceiptRejectsGarbage(t *testing.T) {
	for _, s := range []string{
		"/data/uploads/e1.jpg",
		"data:image/png,notbase64marker",
		"data:;base64,AAAA",
		"data:image/png;base64,%%%",
		"data:image/png;base64",
	} {
		if _, _, err := DecodeReceipt(s); !errors.Is(err, ErrInvalidReceipt) {
			t.Fatalf("DecodeReceipt(%q) err = %v, want ErrInvalidReceipt", s, err)
		}
	}
}

func TestReceiptExtension(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      "jpg",
		"image/png":       "png",
		"image/gif":       "gif",
		"image/webp":      "bin",
		"":                "bin",
		"application/pdf": "bin",
	}
	for mt, want := range cases {
		if got := ReceiptExtension(mt); got != want {
			t.Fatalf("ReceiptExtension(%q) = %q, want %q", mt, got, want)
		}
	}
}
