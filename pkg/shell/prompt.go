package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// prompter reads one answer per line.
type prompter struct {
	r *bufio.Reader
	w io.Writer
}

// newPrompter reuses in when it is already a *bufio.Reader, so that prompters
// sharing one input do not lose buffered lines.
func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{r: bufio.NewReader(in), w: out}
}

// ask prints label and returns the trimmed answer. io.EOF is returned only
// when the input ended before any character was read.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.w, "%s: ", label)
	line, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// askDefault returns def when the answer is empty.
func (p *prompter) askDefault(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	answer, err := p.ask(label)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// askRequired repeats the question until the answer is not empty.
func (p *prompter) askRequired(label string) (string, error) {
	for {
		answer, err := p.ask(label)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintf(p.w, "%s cannot be empty\n", label)
	}
}

func (p *prompter) confirm(label string) (bool, error) {
	answer, err := p.ask(label + " [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
