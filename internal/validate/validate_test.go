package validate

import "testing"

func TestVideoFile(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		want        string
	}{
		{"mp4", "video/mp4", 1024, ""},
		{"mov", "video/quicktime", 1024, ""},
		{"avi", "video/x-msvideo", 1024, ""},
		{"exactly 1GiB", "video/mp4", MaxVideoFileBytes, ""},
		{"one byte over", "video/mp4", MaxVideoFileBytes + 1, MsgVideoTooLarge},
		{"2GiB", "video/mp4", 2 * MaxVideoFileBytes, MsgVideoTooLarge},
		{"webm", "video/webm", 1024, MsgInvalidVideoType},
		{"empty type", "", 1024, MsgInvalidVideoType},
		{"uppercase", "VIDEO/MP4", 1024, MsgInvalidVideoType},
		{"type checked first", "image/png", 2 * MaxVideoFileBytes, MsgInvalidVideoType},
		{"zero bytes", "video/mp4", 0, ""},
	}
	for _, tt := range tests {
		if got := VideoFile(tt.contentType, tt.size); got != tt.want {
			t.Errorf("VideoFile(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "demo", ""},
		{"empty", "", ""},
		{"at limit", string(make([]byte, MaxSearchQueryLength)), ""},
		{"over limit", string(make([]byte, MaxSearchQueryLength+1)), "search query must be 200 characters or fewer"},
	}
	for _, tt := range tests {
		if got := SearchQuery(tt.input); got != tt.want {
			t.Errorf("SearchQuery(%q [len=%d]) = %q, want %q", tt.name, len(tt.input), got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(string(make([]byte, MaxFileNameLength+1))); got != "file name must be 255 characters or fewer" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestTypeForExtension(t *testing.T) {
	tests := map[string]string{
		"clip.mp4":       "video/mp4",
		"CLIP.MOV":       "video/quicktime",
		"old.avi":        "video/x-msvideo",
		"web.webm":       "video/webm",
		"notes.txt":      "",
		"no-extension":   "",
		"archive.tar.qt": "video/quicktime",
	}
	for name, want := range tests {
		if got := TypeForExtension(name); got != want {
			t.Errorf("TypeForExtension(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestLimitsIncludesVideoCeiling(t *testing.T) {
	limits := Limits()
	if limits["maxVideoFileBytes"] != MaxVideoFileBytes {
		t.Errorf("expected max video bytes %d, got %v", MaxVideoFileBytes, limits["maxVideoFileBytes"])
	}
	if len(limits) != 4 {
		t.Errorf("expected 4 limits, got %d", len(limits))
	}
}
