package extract

import "testing"

func TestIsSupported(t *testing.T) {
	tests := map[string]bool{
		"cv.pdf":        true,
		"CV.PDF":        true,
		" resume.pdf ":  true,
		"notes.txt":     false,
		"archive.pdf.z": false,
		"":              false,
	}

	for name, want := range tests {
		if got := IsSupported(name); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7\n...")) {
		t.Fatalf("expected pdf header to be detected")
	}
	if IsPDF([]byte("hello")) {
		t.Fatalf("plain text must not be detected as pdf")
	}
}

func TestExtractReturnsEmptyOnMalformedInput(t *testing.T) {
	e := New(nil)

	inputs := [][]byte{
		nil,
		[]byte("plain text resume"),
		[]byte("%PDF-1.4\nthis is not really a pdf"),
	}

	for _, in := range inputs {
		if got := e.Extract(in); got != "" {
			t.Errorf("expected empty text for %q, got %q", in, got)
		}
	}
}
