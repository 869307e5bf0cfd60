package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/atinyakov/doafavor/internal/validation"
)

// ErrInputClosed is returned when input ends before a prompt is answered.
var ErrInputClosed = errors.New("input closed")

// Prompter reads answers line by line.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer

	// fd is the input's file descriptor, or -1 when in is not a file.
	fd           int
	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
}

// NewPrompter returns a Prompter reading from in and prompting on out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(interface{ Fd() uintptr }); ok {
		fd = int(f.Fd())
	}
	return &Prompter{
		scanner:      bufio.NewScanner(in),
		out:          out,
		fd:           fd,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
	}
}

// Line prints label and returns the next input line.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrInputClosed
	}
	return strings.TrimRight(p.scanner.Text(), "\r"), nil
}

// Secret prints label and reads a line without echo when input is a
// terminal. Other inputs are read like Line.
func (p *Prompter) Secret(label string) (string, error) {
	if p.fd < 0 || !p.isTerminal(p.fd) {
		return p.Line(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := p.readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Confirm asks a yes/no question; anything but y or yes is a no.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.Line(question + " [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Registration collects a sign-up form. Each field is asked again until it
// passes its rule, mirroring the per-keystroke feedback of a form.
func (p *Prompter) Registration() (validation.Input, error) {
	form := validation.NewForm()
	steps := []struct {
		label string
		read  func(string) (string, error)
		set   func(string) validation.Result
	}{
		{"Username", p.Line, form.SetUsername},
		{"Email", p.Line, form.SetEmail},
		{"Password", p.Secret, form.SetPassword},
		{"Confirm password", p.Secret, form.SetConfirmPassword},
	}
	for _, s := range steps {
		if err := p.until(s.label, s.read, s.set); err != nil {
			return validation.Input{}, err
		}
	}
	for {
		agreed, err := p.Confirm("Do you agree to the terms and conditions?")
		if err != nil {
			return validation.Input{}, err
		}
		res := form.SetAgreed(agreed)
		if res.Valid {
			return form.Input(), nil
		}
		fmt.Fprintln(p.out, res.Message)
	}
}

// Login collects an identifier and a password.
func (p *Prompter) Login(identifierLabel string) (validation.LoginInput, error) {
	id, err := p.Line(identifierLabel)
	if err != nil {
		return validation.LoginInput{}, err
	}
	pw, err := p.Secret("Password")
	if err != nil {
		return validation.LoginInput{}, err
	}
	return validation.LoginInput{Identifier: strings.TrimSpace(id), Password: pw}, nil
}

func (p *Prompter) until(label string, read func(string) (string, error), set func(string) validation.Result) error {
	for {
		v, err := read(label)
		if err != nil {
			return err
		}
		res := set(v)
		if res.Valid {
			return nil
		}
		fmt.Fprintln(p.out, res.Message)
	}
}
