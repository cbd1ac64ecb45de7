// Package script runs line-oriented scenarios against the fixture classes.
//
// Each line is one command; words are split with shell quoting rules and
// '#' starts a comment line:
//
//	new x1 TestFactory1 tag.pointer 3
//	expect 3 invoke x1 value
//	expect-error "TestFactory3 new: factory function returned a null pointer" new z TestFactory3 tag.null_ptr
//	del x1
//	expect "0 0 0" alive TestFactory1 TestFactory2 TestFactory3
//
// Arguments are converted before they reach the runtime: tag.NAME is a
// dispatch tag, $NAME a variable, integers and decimals become numbers, and
// s:TEXT forces a string. Anything else is passed as a string.
package script

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/internal/fixtures"
	"github.com/feather-lang/bind/internal/fixtures/tag"
)

// CommandFunc implements a scenario command. The returned string is the
// command result; it is printed by Run and compared by expect.
type CommandFunc func(in *Interp, args []string) (string, error)

// Interp evaluates scenario commands.
type Interp struct {
	Set *fixtures.Set

	// FailFast stops Run at the first failing command. Otherwise every
	// failure is collected and returned together.
	FailFast bool

	vars map[string]any
	cmds map[string]CommandFunc
	out  io.Writer
	log  zerolog.Logger
}

// New returns an interpreter writing command results to out.
func New(set *fixtures.Set, out io.Writer, log zerolog.Logger) *Interp {
	in := &Interp{
		Set:      set,
		FailFast: true,
		vars:     make(map[string]any),
		cmds:     make(map[string]CommandFunc),
		out:      out,
		log:      log,
	}
	in.vars["get_test_factory_1"] = set.GetTestFactory1()
	for name, fn := range builtins {
		in.cmds[name] = fn
	}
	return in
}

// Register adds or replaces a command.
func (in *Interp) Register(name string, fn CommandFunc) {
	in.cmds[name] = fn
}

// Commands returns the sorted command names.
func (in *Interp) Commands() []string {
	names := make([]string, 0, len(in.cmds))
	for name := range in.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run evaluates every line read from r.
func (in *Interp) Run(r io.Reader) error {
	var result *multierror.Error
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		res, err := in.Eval(scanner.Text())
		if err != nil {
			err = errors.Wrapf(err, "line %d", lineno)
			if in.FailFast {
				return err
			}
			in.log.Error().Err(err).Msg("scenario command failed")
			result = multierror.Append(result, err)
			continue
		}
		if res != "" {
			fmt.Fprintln(in.out, res)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read scenario")
	}
	return result.ErrorOrNil()
}

// Eval evaluates one line. Blank lines and comments evaluate to "".
func (in *Interp) Eval(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil
	}
	words, err := shellwords.Parse(line)
	if err != nil {
		return "", errors.Wrap(err, "parse")
	}
	if len(words) == 0 {
		return "", nil
	}
	return in.exec(words)
}

func (in *Interp) exec(words []string) (string, error) {
	fn, ok := in.cmds[words[0]]
	if !ok {
		return "", errors.Errorf("invalid command name %q", words[0])
	}
	in.log.Debug().Strs("words", words).Msg("exec")
	return fn(in, words[1:])
}

// Var returns a variable's value.
func (in *Interp) Var(name string) (any, bool) {
	v, ok := in.vars[name]
	return v, ok
}

// Close releases every instance still held by a variable.
func (in *Interp) Close() {
	names := make([]string, 0, len(in.vars))
	for name := range in.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if inst, ok := in.vars[name].(*bind.Instance); ok {
			inst.Release()
			delete(in.vars, name)
		}
	}
}

// Value converts a scenario word to a runtime argument.
func (in *Interp) Value(word string) (any, error) {
	switch {
	case strings.HasPrefix(word, "tag."):
		t, ok := tag.ByName[word]
		if !ok {
			return nil, errors.Errorf("unknown tag %q", word)
		}
		return t, nil
	case strings.HasPrefix(word, "$"):
		v, ok := in.vars[word[1:]]
		if !ok {
			return nil, errors.Errorf("no such variable %q", word[1:])
		}
		return v, nil
	case strings.HasPrefix(word, "s:"):
		return word[2:], nil
	}
	if n, err := strconv.ParseInt(word, 10, 64); err == nil {
		return n, nil
	}
	if strings.ContainsAny(word, ".eE") {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return f, nil
		}
	}
	return word, nil
}

func (in *Interp) values(words []string) ([]any, error) {
	out := make([]any, len(words))
	for i, w := range words {
		v, err := in.Value(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interp) class(name string) (*bind.Class, error) {
	c, ok := in.Set.RT.Class(name)
	if !ok {
		return nil, errors.Errorf("unknown class %q", name)
	}
	return c, nil
}

func (in *Interp) instance(name string) (*bind.Instance, error) {
	v, ok := in.vars[name]
	if !ok {
		return nil, errors.Errorf("no such variable %q", name)
	}
	inst, ok := v.(*bind.Instance)
	if !ok {
		return nil, errors.Errorf("variable %q is not an instance", name)
	}
	return inst, nil
}
