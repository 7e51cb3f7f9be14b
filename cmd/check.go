package cmd

import (
	"io"
	"text/tabwriter"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/errors"
	"grimm.is/scribe/internal/nameindex"
)

// RunCheck validates the daemon config and the definitions it points at,
// builds the name index and prints its statistics. Dynamic interface
// addresses are not resolved.
func RunCheck(configFile string, verbose bool, out io.Writer) error {
	if configFile == "" {
		configFile = brand.GetConfigFile()
	}
	res, err := loadConfiguration(configFile)
	if err != nil {
		return errors.Wrap(err, errors.GetKind(err), "configuration invalid")
	}
	cfg := res.Config

	defs, warnings, err := backend.Load(backend.Default{}, *cfg.Backend)
	if err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "definitions invalid (%s %s)", cfg.Backend.Type, cfg.Backend.Path)
	}

	idx, err := nameindex.BuildDefinitions(defs)
	if err != nil {
		return errors.Wrap(err, errors.GetKind(err), "failed to build name index")
	}
	defer idx.Destroy()

	Printer.Fprintf(out, "Configuration valid!\n")
	Printer.Fprintf(out, "Schema Version: %s\n", cfg.SchemaVersion)
	Printer.Fprintf(out, "Backend: %s %s\n", cfg.Backend.Type, cfg.Backend.Path)
	Printer.Fprintf(out, "Interfaces: %d\n", len(defs.Interfaces))
	Printer.Fprintf(out, "Zones: %d\n", len(defs.Zones))
	Printer.Fprintf(out, "Services: %d\n", len(defs.Services))

	for _, w := range append(res.Warnings, warnings...) {
		Printer.Fprintf(out, "%s %s\n", StyleStatusWarn.Render("warning:"), w)
	}

	st := idx.Stats()
	Printer.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	Printer.Fprintf(tw, "TABLE\tENTRIES\tBUCKETS\tUSED\tMAX CHAIN\tMEAN CHAIN\n")
	printChainRow(tw, "zones", st.Zones)
	printChainRow(tw, "services", st.Services)
	tw.Flush()

	if verbose {
		for _, t := range []struct {
			name  string
			stats nameindex.ChainStats
		}{{"zones", st.Zones}, {"services", st.Services}} {
			Printer.Fprintf(out, "\n%s chain lengths:\n", t.name)
			for _, l := range t.stats.Lengths() {
				Printer.Fprintf(out, "  %3d: %d buckets\n", l, t.stats.Histogram[l])
			}
		}
		Printer.Fprintln(out)
		Printer.Fprintf(out, "Zone names:\n")
		for _, name := range idx.ZoneNames() {
			Printer.Fprintf(out, "  %s\n", name)
		}
	}
	return nil
}

func printChainRow(w io.Writer, name string, s nameindex.ChainStats) {
	Printer.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.2f\n", name, s.Entries, s.Buckets, s.Used, s.Max, s.Mean)
}
