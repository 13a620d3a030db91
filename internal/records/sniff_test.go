package records

import (
	"errors"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name        string
		sample      string
		delimiter   rune
		quote       rune
		skipSpace   bool
		doubleQuote bool
	}{
		{
			name:      "comma",
			sample:    "Event_Name,Start,Capacity\nGala,2024-05-01,200\nPicnic,2024-06-12,50\nAuction,2024-07-04,120\n",
			delimiter: ',',
			quote:     '"',
		},
		{
			name:      "semicolon",
			sample:    "name;city;zip\nAnn;Oslo;0150\nBo;Bergen;5003\nCy;Trondheim;7010\n",
			delimiter: ';',
			quote:     '"',
		},
		{
			name:      "tab",
			sample:    "first\tlast\temail\nAnn\tLee\tann@x.org\nBo\tKim\tbo@x.org\n",
			delimiter: '\t',
			quote:     '"',
		},
		{
			name:      "pipe",
			sample:    "a|b|c\n1|2|3\n4|5|6\n",
			delimiter: '|',
			quote:     '"',
		},
		{
			name:      "quoted fields with embedded delimiter",
			sample:    "Event_Name,Notes\n\"Gala, spring\",\"big, fancy\"\n\"Picnic\",\"outdoor\"\n",
			delimiter: ',',
			quote:     '"',
		},
		{
			name:      "space after delimiter",
			sample:    "name, note\n\"Ann\", \"hi there\"\n\"Bo\", \"yo\"\n",
			delimiter: ',',
			quote:     '"',
			skipSpace: true,
		},
		{
			name:      "crlf line endings",
			sample:    "Event_Name;Capacity\r\nGala;200\r\nPicnic;50\r\n",
			delimiter: ';',
			quote:     '"',
		},
		{
			name:        "doubled quotes",
			sample:      "name,quote\nAnn,\"she said \"\"hi\"\" loudly\"\nBo,\"plain\"\n",
			delimiter:   ' ',
			quote:       '"',
			doubleQuote: true,
		},
		{
			name:      "single quote char",
			sample:    "'a','b'\n'c','d'\n",
			delimiter: ',',
			quote:     '\'',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Sniff(tt.sample)
			if err != nil {
				t.Fatalf("Sniff() error = %v", err)
			}
			if d.Delimiter != tt.delimiter {
				t.Errorf("Delimiter = %q, want %q", d.Delimiter, tt.delimiter)
			}
			if d.QuoteChar != tt.quote {
				t.Errorf("QuoteChar = %q, want %q", d.QuoteChar, tt.quote)
			}
			if d.SkipInitialSpace != tt.skipSpace {
				t.Errorf("SkipInitialSpace = %v, want %v", d.SkipInitialSpace, tt.skipSpace)
			}
			if d.DoubleQuote != tt.doubleQuote {
				t.Errorf("DoubleQuote = %v, want %v", d.DoubleQuote, tt.doubleQuote)
			}
		})
	}
}

func TestSniff_Inconclusive(t *testing.T) {
	for _, sample := range []string{"", "abc\ndefgh\nij\n", "event_KEY\n101\n102\n"} {
		if _, err := Sniff(sample); !errors.Is(err, ErrNoDelimiter) {
			t.Errorf("Sniff(%q) error = %v, want ErrNoDelimiter", sample, err)
		}
	}
}

func TestHasHeader(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want bool
	}{
		{
			name: "text header over typed columns",
			rows: [][]string{{"Event_Name", "Start", "Capacity"}, {"Gala", "2024-05-01", "200"}, {"Picnic", "2024-06-12", "50"}},
			want: true,
		},
		{
			name: "first row is data",
			rows: [][]string{{"Gala", "2024-05-01", "200"}, {"Picnic", "2024-06-12", "50"}, {"Auction", "2024-07-04", "120"}},
			want: false,
		},
		{
			name: "numeric column against same-length header",
			rows: [][]string{{"id", "xy"}, {"10", "ab"}, {"20", "cd"}},
			want: false,
		},
		{
			name: "header only",
			rows: [][]string{{"a", "b", "c"}},
			want: true,
		},
		{
			name: "all numbers",
			rows: [][]string{{"1", "2"}, {"3", "4"}, {"5", "6"}},
			want: false,
		},
		{
			name: "irregular rows are ignored",
			rows: [][]string{{"Event_Name", "Capacity"}, {"Gala", "200", "extra"}, {"Picnic", "50"}},
			want: true,
		},
		{
			name: "no rows",
			rows: nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasHeader(tt.rows); got != tt.want {
				t.Errorf("HasHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"200", true},
		{" 3.5 ", true},
		{"1e5", true},
		{"-7", true},
		{"inf", true},
		{"nan", true},
		{"1e400", true},
		{"2j", true},
		{"(1+2j)", true},
		{"", false},
		{"abc", false},
		{"2024-05-01", false},
		{"12abc", false},
	}
	for _, tt := range tests {
		if got := isNumeric(tt.in); got != tt.want {
			t.Errorf("isNumeric(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
