package extractor

import "testing"

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"ISO with offset", "2024-03-12T10:15:00+01:00", "2024-03-12T10:15:00+01:00", true},
		{"ISO in UTC", "2024-03-12T10:15:00Z", "2024-03-12T10:15:00Z", true},
		{"ISO offset without colon", "2024-03-12T10:15:00+0100", "2024-03-12T10:15:00+01:00", true},
		{"ISO without zone", "2024-03-12 10:15", "2024-03-12T10:15:00", true},
		{"ISO date only", "Published 2024-03-12", "2024-03-12T00:00:00", true},
		{"numeric with time", "12. 3. 2024 10:15", "2024-03-12T10:15:00", true},
		{"numeric with v separator", "12.03.2024 v 9:05", "2024-03-12T09:05:00", true},
		{"numeric date only", "aktualizováno 1.2.2024", "2024-02-01T00:00:00", true},
		{"english day month year", "12 March 2024", "2024-03-12T00:00:00", true},
		{"abbreviated month", "5 Jan 2023", "2023-01-05T00:00:00", true},
		{"czech genitive month", "12. března 2024", "2024-03-12T00:00:00", true},
		{"wikipedia footer", "This page was last edited on 12 March 2024, at 10:15.", "2024-03-12T10:15:00", true},
		{"czech wikipedia footer", "Stránka byla naposledy editována 3. 1. 2024 v 18:42.", "2024-01-03T18:42:00", true},
		{"month day year", "last edited on March 12, 2024, at 10:15", "2024-03-12T10:15:00", true},
		{"invalid ISO falls back to numeric", "2024-13-01 / 12. 3. 2024", "2024-03-12T00:00:00", true},
		{"invalid ISO falls back to month name", "ref 2024-13-01, 5 Jan 2023", "2023-01-05T00:00:00", true},
		{"later ISO date is used after an invalid one", "2024-13-01 opraveno 2024-03-12T10:15", "2024-03-12T10:15:00", true},
		{"impossible day", "31.2.2024", "", false},
		{"no date", "včera odpoledne", "", false},
		{"empty", "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
