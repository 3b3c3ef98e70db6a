package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCleanFileName(t *testing.T) {
	tc := []struct {
		name     string
		input    string
		nonASCII bool
		want     string
	}{
		{
			name:     "plain name untouched",
			input:    "Artist - Song",
			nonASCII: true,
			want:     "Artist - Song",
		},
		{
			name:     "invalid characters stripped",
			input:    `AC/DC - What's "Next"? <live>*|:`,
			nonASCII: true,
			want:     "ACDC - Whats Next live",
		},
		{
			name:     "control characters stripped",
			input:    "Song\x00 Title\x1f",
			nonASCII: true,
			want:     "Song Title",
		},
		{
			name:     "non-ascii kept where allowed",
			input:    "Sigur Rós - Hoppípolla",
			nonASCII: true,
			want:     "Sigur Rós - Hoppípolla",
		},
		{
			name:     "non-ascii dropped where not allowed",
			input:    "Sigur Rós",
			nonASCII: false,
			want:     "Sigur Rs",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			original := allowsNonASCII
			allowsNonASCII = func() bool { return tt.nonASCII }
			defer func() { allowsNonASCII = original }()

			if got := CleanFileName(tt.input); got != tt.want {
				t.Errorf("CleanFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "spotsync.log")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	logger.Info("hello", "key", "value")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(content) == 0 {
		t.Error("expected log file to contain output")
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected unique non-empty ids, got %q and %q", a, b)
	}
}
