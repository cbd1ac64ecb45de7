package bind_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/internal/fixtures"
	"github.com/feather-lang/bind/internal/fixtures/tag"
	"github.com/feather-lang/bind/stats"
)

func TestConstructionMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	l := stats.NewLedger()
	rt := bind.New(bind.WithLedger(l), bind.WithRegisterer(reg, "test"))
	defer rt.Close()
	s, err := fixtures.Register(rt, l)
	require.NoError(t, err)

	x := mustNew(t, s.TF1, tag.Pointer, 1)
	defer x.Release()
	y := mustNew(t, s.TF3, "y")
	defer y.Release()
	_, err = s.TF3.New(tag.NullPtr)
	require.Error(t, err)
	_, err = s.TF4.New(tag.Pointer, tag.InvalidBase, 1)
	require.Error(t, err)

	expected := `
# HELP test_factory_constructions_total Instances constructed, by class and adopted holder.
# TYPE test_factory_constructions_total counter
test_factory_constructions_total{class="TestFactory1",holder="unique"} 1
test_factory_constructions_total{class="TestFactory3",holder="shared"} 1
# HELP test_factory_failures_total Failed constructions, by class and error kind.
# TYPE test_factory_failures_total counter
test_factory_failures_total{class="TestFactory3",kind="ownership"} 1
test_factory_failures_total{class="TestFactory4",kind="cast"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_factory_constructions_total", "test_factory_failures_total"))

	reg.MustRegister(stats.NewCollector(l, "test"))
	n, err := testutil.GatherAndCount(reg, "test_ledger_alive")
	require.NoError(t, err)
	assert.Equal(t, len(l.Names()), n)
}
