package cmd

import (
	"context"
	"io"
	"path/filepath"

	"grimm.is/scribe/internal/backend"
	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/config"
	"grimm.is/scribe/internal/errors"
)

// RunImport converts a definitions file (HCL, JSON or YAML) into a SQLite
// definitions database, replacing its contents.
func RunImport(ctx context.Context, from, to string, out io.Writer) error {
	if from == "" {
		from = brand.GetDefinitionsFile()
	}
	if to == "" {
		to = filepath.Join(brand.GetStateDir(), "definitions.db")
	}

	doc, err := backend.LoadDocument(from)
	if err != nil {
		return err
	}
	if err := backend.ImportToSQLite(ctx, doc, to); err != nil {
		return err
	}

	// Read the result back so the summary reflects what the daemon will see.
	defs, warnings, err := backend.Load(backend.Default{}, config.Backend{Type: config.BackendSQLite, Path: to})
	if err != nil {
		return errors.Wrap(err, errors.GetKind(err), "imported database does not load")
	}
	Printer.Fprintf(out, "Imported %s into %s\n", from, to)
	Printer.Fprintf(out, "  Interfaces: %d\n", len(defs.Interfaces))
	Printer.Fprintf(out, "  Zones:      %d\n", len(defs.Zones))
	Printer.Fprintf(out, "  Services:   %d\n", len(defs.Services))
	for _, w := range warnings {
		Printer.Fprintf(out, "%s %s\n", StyleStatusWarn.Render("warning:"), w)
	}
	return nil
}
