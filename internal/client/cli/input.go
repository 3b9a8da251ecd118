package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// getSimpleText and getSecret are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getSecret     = GetSecret
)

// GetSimpleText prints a prompt to w and reads a single line from sc.
// Surrounding whitespace is trimmed. io.EOF is returned when input ends.
//
// Example prompt format:
//
//	Prompt text
//	> _
func GetSimpleText(sc *bufio.Scanner, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(sc.Text()), nil
}

// GetSecret prints prompt to w and reads a value from the terminal without
// echo. A newline is printed after the read to keep the UI tidy.
func GetSecret(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// GetMultiline prints a prompt to w and reads lines until an empty line.
// The collected text is joined with '\n'.
func GetMultiline(sc *bufio.Scanner, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(press Enter on an empty line to finish)\n"); err != nil {
		return "", err
	}

	var lines []string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

var errNotANumber = errors.New("not a number")

// GetNumber reads a line and parses it as a float. An empty answer yields def.
func GetNumber(sc *bufio.Scanner, prompt string, def float64, w io.Writer) (float64, error) {
	s, err := GetSimpleText(sc, prompt, w)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errNotANumber, s)
	}
	return n, nil
}

// parseVars reads name=value pairs into formula bindings.
func parseVars(args []string) (map[string]float64, error) {
	vars := make(map[string]float64, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", a)
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %q", name, errNotANumber, value)
		}
		vars[name] = n
	}
	return vars, nil
}
