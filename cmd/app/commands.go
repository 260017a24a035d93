package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"FolioPulse/internal/di"
	"FolioPulse/internal/domain/models"
	"FolioPulse/internal/usecase"
	"FolioPulse/pkg/config"

	"github.com/google/subcommands"
)

// withTracker loads config, wires a tracker and runs fn with it.
func withTracker(ctx context.Context, fn func(context.Context, *usecase.Tracker) error) subcommands.ExitStatus {
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	tracker, cleanup, err := di.InitializeTracker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing tracker: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fn(ctx, tracker); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the refresh daemon and HTTP API" }
func (*serveCmd) Usage() string {
	return `serve

  Restores the saved portfolio, starts the auto-refresh scheduler and serves
  the HTTP and websocket API until interrupted.
`
}
func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type listCmd struct {
	sort string
	desc bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "print holdings and portfolio totals" }
func (*listCmd) Usage() string {
	return `list [-sort name|symbol|isin|qty|avgPrice|current|value|gain|lastUpdated] [-desc]
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sort, "sort", "", "sort field")
	f.BoolVar(&c.desc, "desc", false, "sort descending")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withTracker(ctx, func(_ context.Context, t *usecase.Tracker) error {
		v := t.View(models.SortField(c.sort), c.desc)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYMBOL\tQTY\tAVG\tPRICE\tUPDATED\tERROR")
		for _, h := range v.Holdings {
			price, updated := "-", "-"
			if h.CurrentPrice != nil {
				price = strconv.FormatFloat(*h.CurrentPrice, 'f', 2, 64)
			}
			if h.LastUpdated != nil {
				updated = h.LastUpdated.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%g\t%.2f\t%s\t%s\t%s\n", h.ID, h.Symbol, h.Qty, h.AvgPrice, price, updated, h.Error)
		}
		fmt.Fprintf(w, "\nvalue %.2f\tcost %.2f\tgain %.2f (%.2f%%)\n", v.Value, v.Cost, v.Gain, v.GainPercent)
		return w.Flush()
	})
}

type addCmd struct {
	noFetch bool
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a holding" }
func (*addCmd) Usage() string {
	return `add [-no-fetch] <symbol|isin> <qty> <avgPrice>

  Resolves the identifier and fetches a quote for the selected range unless
  -no-fetch is given.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.noFetch, "no-fetch", false, "store the holding without fetching a quote")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Error: add expects <symbol> <qty> <avgPrice>")
		return subcommands.ExitUsageError
	}
	qty, err := strconv.ParseFloat(f.Arg(1), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid qty %q\n", f.Arg(1))
		return subcommands.ExitUsageError
	}
	avg, err := strconv.ParseFloat(f.Arg(2), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid avgPrice %q\n", f.Arg(2))
		return subcommands.ExitUsageError
	}
	return withTracker(ctx, func(ctx context.Context, t *usecase.Tracker) error {
		h, err := t.AddHolding(ctx, usecase.AddParams{Symbol: f.Arg(0), Qty: qty, AvgPrice: avg, Fetch: !c.noFetch})
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", h.Symbol, h.ID)
		return nil
	})
}

type removeCmd struct{}

func (*removeCmd) Name() string           { return "remove" }
func (*removeCmd) Synopsis() string       { return "remove a holding by id" }
func (*removeCmd) Usage() string          { return "remove <id>\n" }
func (*removeCmd) SetFlags(*flag.FlagSet) {}

func (*removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: remove expects <id>")
		return subcommands.ExitUsageError
	}
	return withTracker(ctx, func(_ context.Context, t *usecase.Tracker) error {
		return t.RemoveHolding(f.Arg(0))
	})
}

type refreshCmd struct {
	rng   string
	force bool
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "refresh quotes for every holding" }
func (*refreshCmd) Usage() string {
	return `refresh [-range 1D|1W|1M|3M|1Y|5Y] [-force]

  Holdings that already hold data for the range are skipped unless -force is
  given. Interrupt to stop the session.
`
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.rng, "range", "", "history range (defaults to the selected range)")
	f.BoolVar(&c.force, "force", false, "refetch even when cached")
}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withTracker(ctx, func(ctx context.Context, t *usecase.Tracker) error {
		var (
			rep usecase.RefreshReport
			err error
		)
		switch {
		case c.rng == "":
			rep = t.RefreshAll(ctx, c.force)
		default:
			r, perr := models.ParseRange(c.rng)
			if perr != nil {
				return perr
			}
			if c.force {
				rep, err = t.ForceRefreshForRange(ctx, r)
			} else {
				rep, err = t.RefreshForRange(ctx, r)
			}
		}
		if err != nil {
			return err
		}
		fmt.Printf("range %s: fetched %d, skipped %d, failed %d, cancelled %d, untouched %d in %s\n",
			rep.Range, rep.Fetched, rep.Skipped, rep.Failed, rep.Cancelled, rep.Untouched, rep.Duration)
		return nil
	})
}

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the portfolio snapshot as JSON" }
func (*exportCmd) Usage() string    { return "export [-out file]\n" }

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "output file (stdout when empty)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withTracker(ctx, func(_ context.Context, t *usecase.Tracker) error {
		blob, err := t.ExportSnapshot()
		if err != nil {
			return err
		}
		if c.out == "" {
			_, err = os.Stdout.Write(append(blob, '\n'))
			return err
		}
		return os.WriteFile(c.out, blob, 0o644)
	})
}

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the portfolio with a JSON snapshot" }
func (*importCmd) Usage() string {
	return `import <file>

  The file must hold a JSON array of holdings. Nothing changes when any item
  is invalid.
`
}
func (*importCmd) SetFlags(*flag.FlagSet) {}

func (*importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: import expects <file>")
		return subcommands.ExitUsageError
	}
	blob, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	if !json.Valid(blob) {
		fmt.Fprintf(os.Stderr, "Error: %s is not valid JSON\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	return withTracker(ctx, func(_ context.Context, t *usecase.Tracker) error {
		n, err := t.ImportSnapshot(blob)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d holdings\n", n)
		return nil
	})
}
