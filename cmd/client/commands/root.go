// Package commands implements the doafavor CLI.
package commands

import (
	"cmp"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/doafavor/internal/client"
	"github.com/atinyakov/doafavor/internal/client/documents"
	"github.com/atinyakov/doafavor/internal/client/federated"
	"github.com/atinyakov/doafavor/internal/client/identity"
	"github.com/atinyakov/doafavor/internal/client/shell"
	"github.com/atinyakov/doafavor/internal/config"
	"github.com/atinyakov/doafavor/internal/logger"
	"github.com/atinyakov/doafavor/internal/models"
	"github.com/atinyakov/doafavor/internal/password"
	"github.com/atinyakov/doafavor/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// errNotSignedIn makes the process exit non-zero after a failed attempt whose
// message the shell has already shown.
var errNotSignedIn = errors.New("not signed in")

// app is the per-invocation wiring shared by the subcommands.
type app struct {
	orch     *service.Orchestrator
	prompter *shell.Prompter
	terminal *shell.Terminal
	cfg      config.Client
	log      *zap.Logger
}

type flags struct {
	configPath string
	url        string
	ca         string
	platform   string
	lookup     string
	keying     string
	logLevel   string
}

// Execute runs the CLI with args against the given streams.
func Execute(args []string, in io.Reader, out, errOut io.Writer) error {
	root := newRootCmd(in, out, errOut)
	root.SetArgs(args)
	err := root.Execute()
	if err != nil && !errors.Is(err, errNotSignedIn) {
		fmt.Fprintln(errOut, "Error:", err)
	}
	return err
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var f flags
	var a *app

	root := &cobra.Command{
		Use:           "doafavor",
		Short:         "Create an account or sign in to doafavor",
		Version:       fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(f.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, f, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err = newApp(cfg, in, out, errOut)
			return err
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to a JSON config file")
	pf.StringVar(&f.url, "url", "", "emulator base URL (e.g. http://localhost:8080)")
	pf.StringVar(&f.ca, "ca", "", "CA certificate that signed the emulator's TLS certificate")
	pf.StringVar(&f.platform, "platform", "", "federated sign-in flow: web or native")
	pf.StringVar(&f.lookup, "lookup", "", "login lookup field: email or username")
	pf.StringVar(&f.keying, "keying", "", "account record keys: uid or generated")
	pf.StringVar(&f.logLevel, "log-level", "", "diagnostic log level")

	current := func() *app { return a }
	root.AddCommand(registerCmd(current), loginCmd(current), signInCmd(current))
	return root
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cmd *cobra.Command, f flags, cfg *config.Client) {
	set := func(name, v string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("url", f.url, &cfg.URL)
	set("ca", f.ca, &cfg.CAFile)
	set("platform", f.platform, &cfg.Platform)
	set("lookup", f.lookup, &cfg.Lookup)
	set("keying", f.keying, &cfg.Keying)
	set("log-level", f.logLevel, &cfg.LogLevel)
}

func newApp(cfg config.Client, in io.Reader, out, errOut io.Writer) (*app, error) {
	log := logger.New()
	if err := log.InitConsole(cfg.LogLevel, errOut); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	hc, err := client.NewHTTPClient(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	idp := identity.New(cfg.URL, hc)
	store := documents.New(cfg.URL, hc, idp)

	terminal := shell.NewTerminal(out)
	prompter := shell.NewPrompter(in, out)

	web := &federated.WebFlow{
		AuthorizeURL: idp.AuthorizeURL,
		Open: func(u string) error {
			_, err := fmt.Fprintf(out, "Open this link in your browser to continue:\n  %s\n", u)
			return err
		},
		Log: log.Log,
	}
	native := &federated.NativeFlow{SDK: &shell.TerminalSDK{Prompter: prompter, Tokens: idp}}
	flow, err := federated.Select(federated.Platform(cfg.Platform), web, native)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, err
	}

	orch := service.NewOrchestrator(service.Deps{
		Store:    store,
		Identity: idp,
		Flow:     flow,
		Shell:    terminal,
		Hasher:   hasher,
		Log:      log.Log,
	}, service.Options{
		LookupField: service.LookupField(cfg.Lookup),
		Keying:      service.Keying(cfg.Keying),
	})

	return &app{orch: orch, prompter: prompter, terminal: terminal, cfg: cfg, log: log.Log}, nil
}

// done turns a reported outcome into the command's result.
func done(out models.Outcome) error {
	if out.IsSuccess() {
		return nil
	}
	return errNotSignedIn
}
