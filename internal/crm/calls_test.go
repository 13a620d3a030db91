package crm

import (
	"errors"
	"testing"
)

func TestNoisyJSONLastLineCall_Parse(t *testing.T) {
	call := NoisyJSONLastLineCall{Name: "save"}

	tests := []struct {
		name        string
		body        string
		wantOutcome Outcome
		wantKey     string
		wantMessage string
		wantExtra   int
	}{
		{
			name:        "success with html noise",
			body:        "<html>\n<body>ok</body>\n[{\"object\":\"event\",\"key\":\"77\",\"result\":\"success\",\"messages\":[]}]",
			wantOutcome: OutcomeSuccess,
			wantKey:     "77",
		},
		{
			name:        "numeric key and trailing newline",
			body:        "noise\n[{\"object\":\"event\",\"key\":12345,\"result\":\"success\",\"messages\":[]}]\n\n",
			wantOutcome: OutcomeSuccess,
			wantKey:     "12345",
		},
		{
			name:        "error with messages",
			body:        "[{\"object\":\"event\",\"key\":\"0\",\"result\":\"error\",\"messages\":[\"Bad date\",\"Row skipped\"]}]",
			wantOutcome: OutcomeError,
			wantKey:     "0",
			wantMessage: "Bad date",
			wantExtra:   1,
		},
		{
			name:        "unknown result is an error",
			body:        "[{\"object\":\"event\",\"key\":\"1\",\"result\":\"partial\"}]",
			wantOutcome: OutcomeError,
			wantKey:     "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := call.Parse([]byte(tt.body))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", got.Outcome, tt.wantOutcome)
			}
			if got.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", got.Key, tt.wantKey)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
			if len(got.ExtraMessages) != tt.wantExtra {
				t.Errorf("ExtraMessages = %v, want %d entries", got.ExtraMessages, tt.wantExtra)
			}
		})
	}
}

func TestNoisyJSONLastLineCall_ParseFailures(t *testing.T) {
	call := NoisyJSONLastLineCall{Name: "save"}

	tests := []struct {
		name   string
		body   string
		reason Reason
	}{
		{"empty body", "", ReasonUnparseable},
		{"only whitespace", "\n  \n", ReasonUnparseable},
		{"html only", "<html>\n<body>Internal error</body>", ReasonUnparseable},
		{"object not array", `{"result":"success"}`, ReasonUnparseable},
		{"empty array", "noise\n[]", ReasonMissingElement},
		{"missing result", `[{"object":"event","key":"1"}]`, ReasonMissingAttributes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call.Parse([]byte(tt.body))
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error = %v, want *ProtocolError", err)
			}
			if pe.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.reason)
			}
		})
	}
}

func TestXMLEnvelopeCall_Parse(t *testing.T) {
	call := XMLEnvelopeCall{Name: "delete"}

	tests := []struct {
		name        string
		body        string
		wantOutcome Outcome
		wantObject  string
		wantKey     string
		wantMessage string
		wantExtra   []string
	}{
		{
			name:        "success",
			body:        `<?xml version="1.0"?><response><success table="event" key="42">Deleted entry 42</success></response>`,
			wantOutcome: OutcomeSuccess,
			wantObject:  "event",
			wantKey:     "42",
			wantMessage: "Deleted entry 42",
		},
		{
			name:        "error with exc",
			body:        "<response>\n  <error table=\"event\" key=\"9\" exc=\"NotFound\">No such entry</error>\n</response>\n",
			wantOutcome: OutcomeError,
			wantObject:  "event",
			wantKey:     "9",
			wantMessage: "No such entry",
			wantExtra:   []string{"NotFound"},
		},
		{
			name:        "empty text",
			body:        `<response><success table="supporter" key="1"/></response>`,
			wantOutcome: OutcomeSuccess,
			wantObject:  "supporter",
			wantKey:     "1",
		},
		{
			name:        "text after a nested element is ignored",
			body:        `<response><success table="event" key="5">Deleted entry 5<br/>trailing</success></response>`,
			wantOutcome: OutcomeSuccess,
			wantObject:  "event",
			wantKey:     "5",
			wantMessage: "Deleted entry 5",
		},
		{
			name:        "only first child counts",
			body:        `<response><error table="event" key="3">first</error><success table="event" key="3">second</success></response>`,
			wantOutcome: OutcomeError,
			wantObject:  "event",
			wantKey:     "3",
			wantMessage: "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := call.Parse([]byte(tt.body))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", got.Outcome, tt.wantOutcome)
			}
			if got.Object != tt.wantObject {
				t.Errorf("Object = %q, want %q", got.Object, tt.wantObject)
			}
			if got.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", got.Key, tt.wantKey)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
			if len(got.ExtraMessages) != len(tt.wantExtra) {
				t.Fatalf("ExtraMessages = %v, want %v", got.ExtraMessages, tt.wantExtra)
			}
			for i := range tt.wantExtra {
				if got.ExtraMessages[i] != tt.wantExtra[i] {
					t.Errorf("ExtraMessages[%d] = %q, want %q", i, got.ExtraMessages[i], tt.wantExtra[i])
				}
			}
		})
	}
}

func TestXMLEnvelopeCall_ParseFailures(t *testing.T) {
	call := XMLEnvelopeCall{Name: "delete"}

	tests := []struct {
		name   string
		body   string
		reason Reason
	}{
		{"empty", "", ReasonUnparseable},
		{"not xml", "Internal Server Error", ReasonUnparseable},
		{"unclosed", `<response><success table="e" key="1">ok</success>`, ReasonUnparseable},
		{"trailing text", `<response><success table="e" key="1"/></response>garbage`, ReasonUnparseable},
		{"second root", `<response/><response/>`, ReasonUnparseable},
		{"no child", `<response>nothing here</response>`, ReasonMissingElement},
		{"missing key", `<response><success table="event">ok</success></response>`, ReasonMissingAttributes},
		{"missing table", `<response><error key="1">bad</error></response>`, ReasonMissingAttributes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call.Parse([]byte(tt.body))
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse() error = %v, want *ProtocolError", err)
			}
			if pe.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.reason)
			}
		})
	}
}

func TestArgsEncode(t *testing.T) {
	var args Args
	args.Add("Title", "Spring Gala & Auction")
	args.Add("event_KEY", "")
	args.Add("Notes", "50% off/today")
	args.Add("object", "event")

	want := "Title=Spring+Gala+%26+Auction&event_KEY=&Notes=50%25+off%2Ftoday&object=event"
	if got := args.Encode(); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}

	if got := endpoint("/save", "json", args); got != "/save?json&"+want {
		t.Errorf("endpoint() = %q", got)
	}
	if got := endpoint("/save", "json", nil); got != "/save?json" {
		t.Errorf("endpoint() with no args = %q, want %q", got, "/save?json")
	}
}

func TestMaskQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"json&object=event", "json&object=event"},
		{"json&email=a%40b.org&password=hunter2", "json&email=a%40b.org&password=[MASKED]"},
	}
	for _, tt := range tests {
		if got := maskQuery(tt.in); got != tt.want {
			t.Errorf("maskQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScalarText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"abc"`, "abc"},
		{`"a\/b"`, "a/b"},
		{`12`, "12"},
		{`1.5`, "1.5"},
		{`true`, "true"},
		{`null`, ""},
	}
	for _, tt := range tests {
		if got := scalarText([]byte(tt.raw)); got != tt.want {
			t.Errorf("scalarText(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestOperationResult_Messages(t *testing.T) {
	tests := []struct {
		name string
		res  OperationResult
		want []string
	}{
		{
			name: "no messages",
			res:  OperationResult{Outcome: OutcomeSuccess},
			want: nil,
		},
		{
			name: "message only",
			res:  OperationResult{Message: "Deleted entry 5"},
			want: []string{"Deleted entry 5"},
		},
		{
			name: "empty entries are kept",
			res:  OperationResult{Message: "", ExtraMessages: []string{"Invalid date", ""}},
			want: []string{"", "Invalid date", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.res.Messages()
			if len(got) != len(tt.want) {
				t.Fatalf("Messages() = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Messages()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
