package board

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "DRAFT", want: StatusDraft},
		{in: " PUBLISHED ", want: StatusPublished},
		{in: "published", wantErr: true},
		{in: "", wantErr: true},
		{in: "LIVE", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestToggle(t *testing.T) {
	if got := StatusDraft.Toggle(); got != StatusPublished {
		t.Errorf("DRAFT toggles to %q", got)
	}
	if got := StatusPublished.Toggle(); got != StatusDraft {
		t.Errorf("PUBLISHED toggles to %q", got)
	}
}
