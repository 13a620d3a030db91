// Package credentials resolves the login used for a run. Values already
// known (flags, environment) are used as is; anything missing is asked for
// on the terminal, with the password read without echo.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"golang.org/x/term"
)

// ErrNoTerminal is returned when a value is missing and input is not a
// terminal to ask on.
var ErrNoTerminal = errors.New("not a terminal")

// Prompter asks for missing credentials.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	terminal     bool
	readPassword func() ([]byte, error)
}

// NewPrompter prompts on out and reads from in. Password input is hidden
// when in is a terminal.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	fd := int(in.Fd())
	return &Prompter{
		in:           bufio.NewReader(in),
		out:          out,
		terminal:     term.IsTerminal(fd),
		readPassword: func() ([]byte, error) { return term.ReadPassword(fd) },
	}
}

// Resolve returns credentials, prompting for an empty email or password.
func (p *Prompter) Resolve(email, password string) (crm.Credentials, error) {
	var err error

	email = strings.TrimSpace(email)
	if email == "" {
		if email, err = p.ask("Email address: "); err != nil {
			return crm.Credentials{}, fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(email)
		if email == "" {
			return crm.Credentials{}, errors.New("email is required")
		}
	}

	if password == "" {
		if password, err = p.askSecret("Password: "); err != nil {
			return crm.Credentials{}, fmt.Errorf("read password: %w", err)
		}
	}

	return crm.Credentials{Email: email, Password: password}, nil
}

func (p *Prompter) ask(prompt string) (string, error) {
	if !p.terminal {
		return "", ErrNoTerminal
	}
	fmt.Fprint(p.out, prompt)
	return p.readLine()
}

func (p *Prompter) askSecret(prompt string) (string, error) {
	if !p.terminal {
		// Piped input: the first line is the password.
		return p.readLine()
	}
	fmt.Fprint(p.out, prompt)
	b, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
