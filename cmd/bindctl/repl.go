package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/feather-lang/bind/internal/script"
)

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "evaluate scenario commands interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession()
			if err != nil {
				return err
			}
			defer s.close()
			s.interp.Register("commands", func(in *script.Interp, args []string) (string, error) {
				return strings.Join(in.Commands(), " "), nil
			})

			if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return runTerminal(f, s.interp)
			}
			return runLines(a.in, a.out, a.errOut, s.interp)
		},
	}
}

// runLines evaluates one command per input line. Errors are reported and
// do not stop the loop.
func runLines(r io.Reader, out, errOut io.Writer, in *script.Interp) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		res, err := in.Eval(scanner.Text())
		if err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			continue
		}
		if res != "" {
			fmt.Fprintln(out, res)
		}
	}
	return errors.Wrap(scanner.Err(), "read input")
}

func runTerminal(f *os.File, in *script.Interp) error {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return errors.Wrap(err, "raw mode")
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, os.Stdout}, "% ")
	if width, height, err := term.GetSize(fd); err == nil {
		t.SetSize(width, height)
	}
	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read line")
		}
		res, err := in.Eval(line)
		if err != nil {
			fmt.Fprintf(t, "error: %s\n", err)
			continue
		}
		if res != "" {
			fmt.Fprintln(t, res)
		}
	}
}
