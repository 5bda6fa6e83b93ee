// Package main provides mediactl, an offline maintenance tool for the scanshelf
// media store. Stop the server first: the settings database is opened exclusively.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/samber/do/v2"

	"github.com/scanshelf/scanshelf/internal/config"
	"github.com/scanshelf/scanshelf/internal/di"
	"github.com/scanshelf/scanshelf/internal/history"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/scanlog"
	"github.com/scanshelf/scanshelf/internal/service"
)

const usage = `usage: mediactl [config flags] <command> [args]

commands:
  history [-bucket b] [-q query]       list products rebuilt from the store
  assets <barcode>                     list a product's assets and its next name
  lookup <barcode>                     show how a barcode resolves
  renumber -bucket b <base>...         close gaps in product sequences
  delete -bucket b <name>              delete one asset and renumber the rest
  import-mapping <file|->              import a product code mapping
  clear-mapping                        remove the imported mapping
  policy [-secondary] [-label l] [-ext e]
                                       show or update the naming policy
  scans [-limit n] [-q query]          list recently scanned barcodes
`

// errUsage is returned for malformed command lines.
var errUsage = errors.New("invalid usage")

type command func(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error

var commands = map[string]command{
	"history":        cmdHistory,
	"assets":         cmdAssets,
	"lookup":         cmdLookup,
	"renumber":       cmdRenumber,
	"delete":         cmdDelete,
	"import-mapping": cmdImportMapping,
	"clear-mapping":  cmdClearMapping,
	"policy":         cmdPolicy,
	"scans":          cmdScans,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "mediactl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, rest, err := config.LoadConfigArgs(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}

	injector := di.NewContainer(cfg)
	defer injector.Shutdown()

	// Keep stdout for command output.
	do.OverrideValue(injector, logger.New(logger.Config{
		Writer:      stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	}))

	catalog, err := do.Invoke[*service.CatalogService](injector)
	if err != nil {
		return err
	}

	cmdArgs := rest[1:]
	if rest[0] == "import-mapping" && len(cmdArgs) == 1 && cmdArgs[0] == "-" {
		return importMapping(ctx, catalog, stdin, stdout)
	}
	return cmd(ctx, catalog, cmdArgs, stdout)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func bucketFlag(fs *flag.FlagSet) *string {
	return fs.String("bucket", string(naming.BucketPrimary), "bucket (primary, secondary)")
}

func cmdHistory(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	fs := newFlagSet("history")
	bucket := fs.String("bucket", "", "bucket (primary, secondary); both when empty")
	query := fs.String("q", "", "case-insensitive base name filter")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var index map[naming.Bucket][]history.ProductGroup
	if *bucket == "" {
		all, err := catalog.HistoryAll(ctx, *query)
		if err != nil {
			return err
		}
		index = all
	} else {
		b, err := naming.ParseBucket(*bucket)
		if err != nil {
			return err
		}
		groups, err := catalog.History(ctx, b, *query)
		if err != nil {
			return err
		}
		index = map[naming.Bucket][]history.ProductGroup{b: groups}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tPRODUCT\tASSETS\tLAST MODIFIED")
	for _, b := range naming.Buckets {
		for _, g := range index[b] {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b, g.BaseName, len(g.Assets), formatTime(g.LastModified))
		}
	}
	return tw.Flush()
}

func cmdAssets(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: assets takes one barcode", errUsage)
	}
	assets, err := catalog.ListAssets(ctx, args[0])
	if err != nil {
		return err
	}

	printResolution(out, assets.Resolution)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, a := range assets.Group.Assets {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", a.Name, a.Size, formatTime(a.ModTime))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "next name: %s\n", assets.NextName)
	return nil
}

func cmdLookup(_ context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: lookup takes one barcode", errUsage)
	}
	lookup, err := catalog.LookupProduct(args[0])
	if err != nil {
		return err
	}
	if lookup.Mapped {
		fmt.Fprintf(out, "mapped to: %s\n", lookup.Secondary)
	} else {
		fmt.Fprintln(out, "mapped to: (none)")
	}
	printResolution(out, lookup.Resolution)
	return nil
}

func cmdRenumber(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	fs := newFlagSet("renumber")
	bucket := bucketFlag(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: renumber needs at least one base name", errUsage)
	}
	b, err := naming.ParseBucket(*bucket)
	if err != nil {
		return err
	}

	failed := 0
	for _, base := range fs.Args() {
		result, err := catalog.Renumber(ctx, b, base)
		if err != nil {
			return fmt.Errorf("renumber %s: %w", base, err)
		}
		for _, r := range result.Renamed {
			fmt.Fprintf(out, "%s -> %s\n", r.From, r.To)
		}
		failed += len(result.Failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d renames failed, run renumber again", failed)
	}
	return nil
}

func cmdDelete(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	fs := newFlagSet("delete")
	bucket := bucketFlag(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: delete takes one asset name", errUsage)
	}
	b, err := naming.ParseBucket(*bucket)
	if err != nil {
		return err
	}

	result, err := catalog.DeleteAsset(ctx, b, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", result.Deleted.Name)
	for _, r := range result.Renumber.Renamed {
		fmt.Fprintf(out, "%s -> %s\n", r.From, r.To)
	}
	return nil
}

func cmdImportMapping(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import-mapping takes one file", errUsage)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return importMapping(ctx, catalog, f, out)
}

func importMapping(ctx context.Context, catalog *service.CatalogService, r io.Reader, out io.Writer) error {
	status, err := catalog.ImportMapping(ctx, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d mappings, skipped %d lines\n", status.Entries, status.Skipped)
	return nil
}

func cmdClearMapping(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: clear-mapping takes no arguments", errUsage)
	}
	if err := catalog.ClearMapping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "mapping cleared")
	return nil
}

func cmdPolicy(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	current := catalog.Policy()

	fs := newFlagSet("policy")
	secondary := fs.Bool("secondary", current.UseSecondaryIdentifier, "name captures by the mapped product code")
	label := fs.String("label", current.Label, "label appended as _<label>")
	ext := fs.String("ext", current.Extension, "file extension of new captures")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	policy := current
	if fs.NFlag() > 0 {
		updated, err := catalog.UpdatePolicy(ctx, naming.Policy{
			UseSecondaryIdentifier: *secondary,
			Label:                  *label,
			Extension:              *ext,
		})
		if err != nil {
			return err
		}
		policy = updated
	}

	fmt.Fprintf(out, "secondary: %t\nlabel: %s\nextension: %s\n", policy.UseSecondaryIdentifier, policy.Label, policy.Extension)
	return nil
}

func cmdScans(ctx context.Context, catalog *service.CatalogService, args []string, out io.Writer) error {
	fs := newFlagSet("scans")
	limit := fs.Int("limit", 20, "maximum entries")
	query := fs.String("q", "", "barcode or product code substring")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var (
		scans []scanlog.Scan
		err   error
	)
	if *query != "" {
		scans, err = catalog.SearchScans(ctx, *query, *limit)
	} else {
		scans, err = catalog.RecentScans(ctx, *limit)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BARCODE\tPRODUCT\tCAPTURES\tLAST SCANNED")
	for _, e := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.PrimaryID, e.BaseName, e.CaptureCount, formatTime(e.LastScannedAt))
	}
	return tw.Flush()
}

func printResolution(out io.Writer, res naming.Resolution) {
	fmt.Fprintf(out, "product: %s\nbucket: %s\n", res.BaseName, res.Bucket)
	if res.Fallback {
		fmt.Fprintln(out, "warning: no usable product code, named by barcode")
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
