package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const sampleText = `Consolidated Account Statement
Folio No: 1234567 / 89 PAN: ABCDE1234F
G357-Aditya Birla Sun Life Small Cap Fund - Growth - ISIN: INF209K01EN2
Opening Unit Balance: 12,871.468`

func TestIsReadableText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"statement text", sampleText, true},
		{"too short", "Folio No: 1", false},
		{"binary garbage", strings.Repeat("\x00\x01\x02ÿþ", 40), false},
		{"readable but unrelated", strings.Repeat("lorem ipsum dolor sit amet ", 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReadableText(tt.text); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextQuality(t *testing.T) {
	if q := textQuality([]string{"Amount ₹1,000.00"}); q != 1 {
		t.Errorf("quality: got %f, want 1", q)
	}
	if q := textQuality(nil); q != 0 {
		t.Errorf("empty quality: got %f, want 0", q)
	}
}

func TestExtractText_NotAPDF(t *testing.T) {
	e := New(zerolog.Nop(), false)
	_, err := e.ExtractText(context.Background(), []byte("definitely not a pdf"), "")
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("got %v, want ErrUnreadable", err)
	}
}

func TestExtractFile_Missing(t *testing.T) {
	e := New(zerolog.Nop(), false)
	if _, err := e.ExtractFile(context.Background(), "does-not-exist.pdf", ""); err == nil {
		t.Fatal("expected error, got nil")
	}
}
