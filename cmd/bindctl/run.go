package main

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const runHelp = `
Run one or more scenario files. Each file runs on a fresh runtime, so
ledger counts never leak between files.

	$ bindctl run testdata/factory.bind
`

func newRunCmd(a *app) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "run scenario files",
		Long:  runHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keepGoing {
				a.cfg.FailFast = false
			}
			var result *multierror.Error
			for _, file := range args {
				if err := a.runFile(file, nil); err != nil {
					result = multierror.Append(result, err)
					if a.cfg.FailFast {
						break
					}
				}
			}
			return result.ErrorOrNil()
		},
	}
	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "report every failing command instead of stopping at the first")
	return cmd
}

// runFile runs file in a new session. If inspect is not nil it sees the
// session after the scenario and before its instances are released.
func (a *app) runFile(file string, inspect func(*session) error) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.Wrap(err, "open scenario")
	}
	defer f.Close()

	s, err := a.newSession()
	if err != nil {
		return err
	}
	runErr := s.interp.Run(f)
	if runErr != nil {
		runErr = errors.Wrap(runErr, file)
		a.log.Error().Err(runErr).Str("file", file).Msg("scenario failed")
	} else {
		a.log.Info().Str("file", file).Int("live", s.rt.RegisteredInstances()).Msg("scenario passed")
	}

	var result *multierror.Error
	result = multierror.Append(result, runErr)
	if inspect != nil {
		result = multierror.Append(result, inspect(s))
	}
	if err := s.close(); err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "%s: close", file))
	}
	return result.ErrorOrNil()
}
