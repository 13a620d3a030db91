package credentials

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestPrompter(input string, terminal bool, secret string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return &Prompter{
		in:           bufio.NewReader(strings.NewReader(input)),
		out:          &out,
		terminal:     terminal,
		readPassword: func() ([]byte, error) { return []byte(secret), nil },
	}, &out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		terminal   bool
		secret     string
		email      string
		password   string
		wantEmail  string
		wantPass   string
		wantPrompt string
	}{
		{
			name:      "nothing to ask",
			email:     "ops@example.org",
			password:  "s3cret",
			wantEmail: "ops@example.org",
			wantPass:  "s3cret",
		},
		{
			name:       "password from terminal",
			terminal:   true,
			secret:     "typed",
			email:      "ops@example.org",
			wantEmail:  "ops@example.org",
			wantPass:   "typed",
			wantPrompt: "Password: \n",
		},
		{
			name:       "email and password from terminal",
			input:      " ops@example.org \n",
			terminal:   true,
			secret:     "typed",
			wantEmail:  "ops@example.org",
			wantPass:   "typed",
			wantPrompt: "Email address: Password: \n",
		},
		{
			name:      "password piped",
			input:     "piped secret\r\nignored\n",
			email:     "ops@example.org",
			wantEmail: "ops@example.org",
			wantPass:  "piped secret",
		},
		{
			name:      "piped password without newline",
			input:     "lastline",
			email:     "ops@example.org",
			wantEmail: "ops@example.org",
			wantPass:  "lastline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPrompter(tt.input, tt.terminal, tt.secret)
			got, err := p.Resolve(tt.email, tt.password)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Email != tt.wantEmail || got.Password != tt.wantPass {
				t.Errorf("Resolve() = %q/%q, want %q/%q", got.Email, got.Password, tt.wantEmail, tt.wantPass)
			}
			if out.String() != tt.wantPrompt {
				t.Errorf("prompt output = %q, want %q", out.String(), tt.wantPrompt)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Run("email needs a terminal", func(t *testing.T) {
		p, _ := newTestPrompter("ops@example.org\n", false, "")
		if _, err := p.Resolve("", "s3cret"); !errors.Is(err, ErrNoTerminal) {
			t.Errorf("Resolve() error = %v, want ErrNoTerminal", err)
		}
	})

	t.Run("blank email", func(t *testing.T) {
		p, _ := newTestPrompter("  \n", true, "x")
		if _, err := p.Resolve("", ""); err == nil {
			t.Error("Resolve() error = nil, want email is required")
		}
	})

	t.Run("no piped password", func(t *testing.T) {
		p, _ := newTestPrompter("", false, "")
		if _, err := p.Resolve("ops@example.org", ""); !errors.Is(err, io.EOF) {
			t.Errorf("Resolve() error = %v, want io.EOF", err)
		}
	})

	t.Run("terminal read failure", func(t *testing.T) {
		p, _ := newTestPrompter("", true, "")
		p.readPassword = func() ([]byte, error) { return nil, errors.New("interrupted") }
		if _, err := p.Resolve("ops@example.org", ""); err == nil {
			t.Error("Resolve() error = nil, want read failure")
		}
	})
}
