// bindctl runs construction scenarios against the fixture classes and
// reports the lifetime ledger they leave behind.
package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/internal/config"
	"github.com/feather-lang/bind/internal/fixtures"
	"github.com/feather-lang/bind/internal/script"
	"github.com/feather-lang/bind/stats"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the settings shared by every subcommand.
type app struct {
	cfgFile  string
	logLevel string

	cfg config.Config
	log zerolog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut, cfg: config.Default()}

	cmd := &cobra.Command{
		Use:          "bindctl",
		Short:        "run binding scenarios and inspect object lifetimes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "path to a TOML settings file")
	f.StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newRunCmd(a),
		newReplCmd(a),
		newStatsCmd(a),
	)
	return cmd
}

func (a *app) setup() error {
	if a.cfgFile != "" {
		cfg, err := config.Load(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logLevel != "" {
		lvl, err := zerolog.ParseLevel(a.logLevel)
		if err != nil {
			return errors.Wrap(err, "--log-level")
		}
		a.cfg.LogLevel = lvl
	}
	a.log = newLogger(a.errOut, a.cfg)
	return nil
}

func newLogger(w io.Writer, cfg config.Config) zerolog.Logger {
	format := cfg.LogFormat
	if format == config.FormatAuto {
		format = config.FormatJSON
		if isTerminal(w) {
			format = config.FormatConsole
		}
	}
	if format == config.FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w)}
	}
	return zerolog.New(w).Level(cfg.LogLevel).With().Timestamp().Logger()
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// session is one runtime with the fixtures registered and an interpreter
// driving it. Every scenario file gets its own session.
type session struct {
	reg    *prometheus.Registry
	ledger *stats.Ledger
	rt     *bind.Runtime
	interp *script.Interp
}

func (a *app) newSession() (*session, error) {
	s := &session{
		reg:    prometheus.NewRegistry(),
		ledger: stats.NewLedger(),
	}
	s.rt = bind.New(
		bind.WithLedger(s.ledger),
		bind.WithLogger(a.log),
		bind.WithRegisterer(s.reg, a.cfg.MetricsNamespace),
	)
	set, err := fixtures.Register(s.rt, s.ledger)
	if err != nil {
		s.rt.Close()
		return nil, err
	}
	s.interp = script.New(set, a.out, a.log)
	s.interp.FailFast = a.cfg.FailFast
	return s, nil
}

func (s *session) close() error {
	s.interp.Close()
	return s.rt.Close()
}
