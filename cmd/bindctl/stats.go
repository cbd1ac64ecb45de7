package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/pkg/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/feather-lang/bind/stats"
)

const statsHelp = `
Run scenario files and print the ledger each one leaves behind: live
objects per class, construction counts and the recorded constructor values.

	$ bindctl stats testdata/factory.bind
	NAME        	ALIVE	CREATED	DEFAULT	DESTROYED	VALUES
	TestFactory1	0    	5      	1      	5        	3,hi!,100,-23

With --prom the runtime and ledger metrics are written in the Prometheus
text format instead.
`

type statsOptions struct {
	prom      bool
	colWidth  uint
	namespace string
}

func newStatsCmd(a *app) *cobra.Command {
	o := &statsOptions{}
	cmd := &cobra.Command{
		Use:   "stats FILE...",
		Short: "print the lifetime ledger left by scenario files",
		Long:  statsHelp,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.namespace = a.cfg.MetricsNamespace
			for _, file := range args {
				if err := a.runFile(file, func(s *session) error {
					return o.run(a.out, s)
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.prom, "prom", false, "write metrics in the Prometheus text format")
	f.UintVar(&o.colWidth, "col-width", 60, "maximum column width of the table")
	return cmd
}

func (o *statsOptions) run(out io.Writer, s *session) error {
	if o.prom {
		if err := s.reg.Register(stats.NewCollector(s.ledger, o.namespace)); err != nil {
			return errors.Wrap(err, "register ledger collector")
		}
		families, err := s.reg.Gather()
		if err != nil {
			return errors.Wrap(err, "gather metrics")
		}
		return writeFamilies(out, families)
	}
	_, err := out.Write(formatLedger(s.ledger.Snapshot(), o.colWidth))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func writeFamilies(out io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return errors.Wrapf(err, "write %s", mf.GetName())
		}
	}
	return nil
}

func formatLedger(snaps []stats.Snapshot, colWidth uint) []byte {
	tbl := uitable.New()
	tbl.MaxColWidth = colWidth
	tbl.AddRow("NAME", "ALIVE", "CREATED", "DEFAULT", "DESTROYED", "VALUES")
	for _, s := range snaps {
		tbl.AddRow(s.Name, s.Alive, s.Constructions, s.DefaultConstructions, s.Destructions, strings.Join(s.Values, ","))
	}
	return tbl.Bytes()
}
