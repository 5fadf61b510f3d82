package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sgaunet/s3box/pkg/config"
	"github.com/sgaunet/s3box/pkg/pathmap"
)

// Wizard collects the connection settings on first run.
type Wizard struct {
	p *prompter
	// readSecret reads the secret key without echo when stdin is a terminal.
	readSecret func() (string, error)
}

// NewWizard creates a wizard on in and out.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	w := &Wizard{p: newPrompter(in, out)}
	w.readSecret = func() (string, error) { return w.p.ask("secret key") }
	return w
}

// HideSecretFrom reads the secret key from f without echo when f is a terminal.
func (w *Wizard) HideSecretFrom(f *os.File) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	w.readSecret = func() (string, error) {
		fmt.Fprint(w.p.w, "secret key: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(w.p.w)
		if err != nil {
			return "", fmt.Errorf("reading secret key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
}

// Run asks for every setting, proposing the values of current as defaults,
// and returns a configuration that passes Validate.
func (w *Wizard) Run(current config.Config) (config.Config, error) {
	cfg := current
	fmt.Fprintln(w.p.w, "s3box setup")

	for {
		var err error
		if cfg.S3endpoint, err = w.p.askDefault("endpoint (empty for AWS)", cfg.S3endpoint); err != nil {
			return cfg, err
		}
		if cfg.S3accessKey, err = w.askKeep("access key", cfg.S3accessKey); err != nil {
			return cfg, err
		}
		secret, err := w.readSecret()
		if err != nil {
			return cfg, err
		}
		if secret != "" {
			cfg.S3secretKey = secret
		}
		if cfg.S3Region == "" {
			cfg.S3Region = config.DefaultRegion
		}
		if cfg.S3Region, err = w.p.askDefault("region", cfg.S3Region); err != nil {
			return cfg, err
		}
		if cfg.Bucket, err = w.p.askDefault("bucket", cfg.Bucket); err != nil {
			return cfg, err
		}
		if cfg.Username, err = w.p.askDefault("username (empty to ask each time)", cfg.Username); err != nil {
			return cfg, err
		}

		err = cfg.Validate()
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, config.ErrConfiguration) {
			return cfg, err
		}
		fmt.Fprintf(w.p.w, "%s\n", err)
	}
}

// askKeep shows only the last characters of an existing value.
func (w *Wizard) askKeep(label, current string) (string, error) {
	shown := ""
	if n := len(current); n > 4 {
		shown = "..." + current[n-4:]
	} else if n > 0 {
		shown = "****"
	}
	answer, err := w.p.askDefault(label, shown)
	if err != nil {
		return "", err
	}
	if answer == shown {
		return current, nil
	}
	return answer, nil
}

// PromptUsername asks for a user name until a valid namespace is given.
func PromptUsername(in io.Reader, out io.Writer) (string, error) {
	p := newPrompter(in, out)
	for {
		name, err := p.askRequired("username")
		if err != nil {
			return "", err
		}
		ns, err := pathmap.SanitizeNamespace(name)
		if err == nil {
			return ns, nil
		}
		fmt.Fprintf(out, "%s\n", err)
	}
}
