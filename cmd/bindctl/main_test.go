package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/bind/internal/config"
)

func executeCommand(stdin string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunCmd(t *testing.T) {
	out, _, err := executeCommand("", "run", "--log-level", "disabled", "testdata/basic.bind")
	require.NoError(t, err)
	assert.Equal(t, "3\nbye\n", out)
}

func TestRunCmdStopsAtFirstFailure(t *testing.T) {
	out, _, err := executeCommand("", "run", "--log-level", "disabled", "testdata/failing.bind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `testdata/failing.bind: line 2: invoke: got "3", want "4"`)
	assert.NotContains(t, out, "reached")
}

func TestRunCmdKeepGoing(t *testing.T) {
	out, _, err := executeCommand("", "run", "-k", "--log-level", "disabled", "testdata/failing.bind", "testdata/basic.bind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, out, "reached")
	assert.True(t, strings.HasSuffix(out, "3\nbye\n"), out)
}

func TestRunCmdConfigFile(t *testing.T) {
	out, errOut, err := executeCommand("", "run", "--config", "testdata/bindctl.toml", "testdata/failing.bind")
	require.Error(t, err)
	assert.Contains(t, out, "reached", "fail_fast = false keeps going")
	assert.Contains(t, errOut, `"level":"error"`)
	assert.Contains(t, errOut, `"file":"testdata/failing.bind"`)
}

func TestRunCmdErrors(t *testing.T) {
	_, _, err := executeCommand("", "run")
	assert.EqualError(t, err, "requires at least 1 arg(s), only received 0")

	_, _, err = executeCommand("", "run", "--log-level", "loud", "testdata/basic.bind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--log-level")

	_, _, err = executeCommand("", "run", "--log-level", "disabled", "testdata/missing.bind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open scenario")
}

func TestStatsCmdTable(t *testing.T) {
	out, _, err := executeCommand("", "stats", "--log-level", "disabled", "testdata/basic.bind")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "3", lines[0])
	assert.Equal(t, "bye", lines[1])
	assert.Equal(t, []string{"NAME", "ALIVE", "CREATED", "DEFAULT", "DESTROYED", "VALUES"}, strings.Fields(lines[2]))

	var tf1, tf3 []string
	for _, line := range lines[3:] {
		fields := strings.Fields(line)
		switch fields[0] {
		case "TestFactory1":
			tf1 = fields
		case "TestFactory3":
			tf3 = fields
		}
	}
	assert.Equal(t, []string{"TestFactory1", "1", "1", "0", "0", "3"}, tf1)
	assert.Equal(t, []string{"TestFactory3", "0", "1", "0", "1", "bye"}, tf3)
}

func TestStatsCmdProm(t *testing.T) {
	out, _, err := executeCommand("", "stats", "--prom", "--config", "testdata/bindctl.toml", "testdata/basic.bind")
	require.NoError(t, err)
	assert.Contains(t, out, "# TYPE scenario_ledger_alive gauge")
	assert.Contains(t, out, `scenario_ledger_alive{class="TestFactory1"} 1`)
	assert.Contains(t, out, `scenario_factory_constructions_total{class="TestFactory3",holder="shared"} 1`)
}

func TestReplReadsLines(t *testing.T) {
	stdin := strings.Join([]string{
		"new x TestFactory2 tag.pointer 7",
		"invoke x value",
		"invoke x nope",
		"commands",
	}, "\n")
	out, errOut, err := executeCommand(stdin, "repl", "--log-level", "disabled")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "7", lines[0])
	assert.Contains(t, lines[1], "expect-error")
	assert.True(t, strings.HasPrefix(errOut, "error: "), errOut)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	log := newLogger(&buf, cfg)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`, "auto is json off a terminal")

	buf.Reset()
	cfg.LogFormat = config.FormatConsole
	log = newLogger(&buf, cfg)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "INF hello")

	buf.Reset()
	cfg.LogLevel = zerolog.WarnLevel
	log = newLogger(&buf, cfg)
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}
