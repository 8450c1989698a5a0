package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/ideabank/internal/api"
	"github.com/insightdelivered/ideabank/internal/config"
	"github.com/insightdelivered/ideabank/internal/engine"
	"github.com/insightdelivered/ideabank/internal/logging"
	"github.com/insightdelivered/ideabank/internal/models"
	"github.com/insightdelivered/ideabank/internal/parser"
	"github.com/insightdelivered/ideabank/internal/source"
	"github.com/insightdelivered/ideabank/internal/writer"
)

const dateLayout = "2006-01-02"

// cli carries state shared by every command.
type cli struct {
	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger

	logLevel string
	sheet    string
	timeout  time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "ideabank",
		Short: "Explore idea bank spreadsheet exports",
		Long: `Idea Bank Explorer
by Insight Delivered (QEA AutoLens)

Loads an idea bank export (CSV text, an Excel workbook, or a published
CSV URL), validates and normalizes every row, and reports filtered views,
savings statistics and exports.

Sources:
  ideas.csv, ideas.txt      comma-separated export
  ideas.xlsx, ideas.xlsm    Excel workbook (first sheet unless --sheet)
  https://...               published CSV export`,
		Example: `  # Headline numbers
  ideabank summary ideas.csv

  # Approved chassis ideas from 2024, biggest savings first
  ideabank ideas ideas.xlsx --subsystem chassis --status approved --from 2024-01-01 --sort desc

  # Export the filtered view as a workbook
  ideabank export ideas.csv approved.xlsx --status approved

  # Run the HTTP API
  ideabank serve --addr :8080`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = c.logger.Sync()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides IDEABANK_LOG_LEVEL)")
	pf.StringVar(&c.sheet, "sheet", "", "Workbook sheet to read (default: first sheet)")
	pf.DurationVar(&c.timeout, "timeout", 0, "Fetch timeout for URL sources (overrides IDEABANK_FETCH_TIMEOUT)")

	root.AddCommand(
		c.summaryCmd(),
		c.ideasCmd(),
		c.optionsCmd(),
		c.exportCmd(),
		c.serveCmd(),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.timeout > 0 {
		cfg.Fetch.Timeout = c.timeout
	}
	if c.sheet != "" {
		cfg.Fetch.Sheet = c.sheet
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

// load reads and parses one export. An export without a single valid row is
// an error here, unlike in the parser.
func (c *cli) load(ctx context.Context, location string) ([]models.Idea, error) {
	src, err := source.Open(location, source.Options{
		Sheet: c.cfg.Fetch.Sheet,
		HTTP: source.HTTPOptions{
			Timeout:  c.cfg.Fetch.Timeout,
			MaxBytes: c.cfg.Fetch.MaxBytes,
		},
	})
	if err != nil {
		return nil, err
	}

	text, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	report := parser.ParseReport(text)
	log := c.logger.With(zap.String("source", src.Name()))
	log.Debug("export parsed",
		zap.Int("rows", report.Rows),
		zap.Int("accepted", report.Accepted),
	)
	if n := report.RejectedTotal(); n > 0 {
		fields := []zap.Field{zap.Int("rejected", n)}
		for reason, count := range report.Rejected {
			fields = append(fields, zap.Int(string(reason), count))
		}
		log.Warn("rows skipped", fields...)
	}

	if report.Accepted == 0 {
		return nil, fmt.Errorf("%s: %w", src.Name(), parser.ErrNoValidData)
	}
	return report.Ideas, nil
}

// filterFlags are the view flags shared by summary, ideas and export.
type filterFlags struct {
	subsystems []string
	platforms  []string
	statuses   []string
	from       string
	to         string
	search     string
	sort       string
	defaults   bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.subsystems, "subsystem", nil, "Only include these subsystems (repeat or comma separate)")
	fs.StringSliceVar(&f.platforms, "platform", nil, "Only include these platforms")
	fs.StringSliceVar(&f.statuses, "status", nil, "Only include these final statuses")
	fs.StringVar(&f.from, "from", "", "Earliest submit date (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "Latest submit date, inclusive (YYYY-MM-DD)")
	fs.StringVarP(&f.search, "search", "q", "", "Case-insensitive text search over id, title, submitter, subsystem and platform")
	fs.StringVar(&f.sort, "sort", "none", "Order by savings: none, asc or desc")
	fs.BoolVar(&f.defaults, "defaults", false, "Start from the default selection: full date span, IDEABANK_REPORT_EXCLUDED_STATUSES left out")
}

// query builds the engine query. Values are normalized the same way records
// are, so "chassis" selects "Chassis".
func (f *filterFlags) query(all []models.Idea, excluded []string) (models.Query, error) {
	var criteria models.FilterCriteria
	if f.defaults {
		criteria = engine.DefaultCriteria(all, excluded...)
	}
	if len(f.subsystems) > 0 {
		criteria = criteria.WithSubsystems(normalizeAll(f.subsystems)...)
	}
	if len(f.platforms) > 0 {
		criteria = criteria.WithPlatforms(normalizeAll(f.platforms)...)
	}
	if len(f.statuses) > 0 {
		criteria = criteria.WithStatuses(normalizeAll(f.statuses)...)
	}

	dates := criteria.Dates
	if f.from != "" {
		t, err := time.Parse(dateLayout, f.from)
		if err != nil {
			return models.Query{}, fmt.Errorf("invalid --from %q: want YYYY-MM-DD", f.from)
		}
		dates.Start = t
	}
	if f.to != "" {
		t, err := time.Parse(dateLayout, f.to)
		if err != nil {
			return models.Query{}, fmt.Errorf("invalid --to %q: want YYYY-MM-DD", f.to)
		}
		dates.End = t
	}
	if !dates.Start.IsZero() && !dates.End.IsZero() && dates.End.Before(dates.Start) {
		return models.Query{}, fmt.Errorf("--to %s is before --from %s", formatDay(dates.End), formatDay(dates.Start))
	}

	order, err := models.ParseSortOrder(f.sort)
	if err != nil {
		return models.Query{}, err
	}

	return models.Query{
		Criteria: criteria.WithDates(dates),
		Search:   f.search,
		Sort:     order,
	}, nil
}

func normalizeAll(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out = append(out, parser.Normalize(v))
	}
	return out
}

// formatDay prints t as YYYY-MM-DD.
func formatDay(t time.Time) string { return t.Format(dateLayout) }

// topFlag resolves --top against the configured default.
func (c *cli) topFlag(cmd *cobra.Command, top int) (int, error) {
	if !cmd.Flags().Changed("top") {
		return c.cfg.Report.TopN, nil
	}
	if top < 0 {
		return 0, fmt.Errorf("--top must not be negative, got %d", top)
	}
	return top, nil
}

func (c *cli) summaryCmd() *cobra.Command {
	var (
		ff     filterFlags
		top    int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary <source>",
		Short: "Show headline statistics of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := c.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			q, err := ff.query(all, c.cfg.Report.ExcludedStatuses)
			if err != nil {
				return err
			}
			n, err := c.topFlag(cmd, top)
			if err != nil {
				return err
			}

			s := engine.Summarize(engine.Apply(all, q), n)
			if asJSON {
				return writeJSON(c.out, s)
			}
			return printSummary(c.out, s)
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&top, "top", 0, "Subsystems to list, 0 for all (default IDEABANK_REPORT_TOP_N)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (c *cli) ideasCmd() *cobra.Command {
	var (
		ff     filterFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ideas <source>",
		Short: "List the ideas of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := c.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			q, err := ff.query(all, c.cfg.Report.ExcludedStatuses)
			if err != nil {
				return err
			}

			ideas := engine.Apply(all, q)
			if asJSON {
				return writeJSON(c.out, ideas)
			}
			return printIdeas(c.out, ideas)
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (c *cli) optionsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "options <source> <field>",
		Short: "List the distinct values of a field with their counts",
		Long: fmt.Sprintf(`List the distinct values of a field over the whole export, most
frequent first.

Fields: %s`, fieldNames()),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := models.ParseField(args[1])
			if err != nil {
				return fmt.Errorf("%w (fields: %s)", err, fieldNames())
			}
			all, err := c.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			opts := engine.Options(all, field)
			if asJSON {
				return writeJSON(c.out, opts)
			}
			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\tIDEAS\n", strings.ToUpper(string(field)))
			for _, o := range opts {
				fmt.Fprintf(tw, "%s\t%d\n", o.Value, o.Count)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		ff  filterFlags
		top int
	)
	cmd := &cobra.Command{
		Use:   "export <source> <output.csv|output.xlsx>",
		Short: "Write a filtered view to CSV or to an Excel workbook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := args[1]
			ext := strings.ToLower(filepath.Ext(outPath))
			if ext != ".csv" && ext != ".xlsx" {
				return fmt.Errorf("expected .csv or .xlsx output, got %q", ext)
			}

			all, err := c.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			q, err := ff.query(all, c.cfg.Report.ExcludedStatuses)
			if err != nil {
				return err
			}
			ideas := engine.Apply(all, q)

			switch ext {
			case ".csv":
				w := &writer.CSVWriter{}
				if err := w.WriteToFile(outPath, ideas); err != nil {
					return fmt.Errorf("CSV write failed: %w", err)
				}
			case ".xlsx":
				n, err := c.topFlag(cmd, top)
				if err != nil {
					return err
				}
				w := &writer.XLSXWriter{}
				if err := w.WriteToFile(outPath, ideas, engine.Summarize(ideas, n)); err != nil {
					return fmt.Errorf("workbook write failed: %w", err)
				}
			}

			c.logger.Info("export written", zap.String("path", outPath), zap.Int("ideas", len(ideas)))
			fmt.Fprintf(c.out, "Wrote %d idea(s) to %s\n", len(ideas), outPath)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().IntVar(&top, "top", 0, "Subsystems on the Summary sheet, 0 for all (default IDEABANK_REPORT_TOP_N)")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var addr, staticDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			if staticDir != "" {
				c.cfg.Server.StaticDir = staticDir
			}

			app, _ := api.NewServer(c.cfg, c.logger, version)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				c.logger.Info("server listening",
					zap.String("addr", c.cfg.Server.Addr),
					zap.String("version", version),
				)
				return app.Listen(c.cfg.Server.Addr)
			})
			g.Go(func() error {
				<-gctx.Done()
				c.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return app.ShutdownWithContext(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides IDEABANK_SERVER_ADDR)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of the built frontend to serve")
	return cmd
}

func fieldNames() string {
	names := make([]string, len(models.Fields))
	for i, f := range models.Fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(out io.Writer, s models.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Ideas\t%d\n", s.Count)
	fmt.Fprintf(tw, "Total savings\t%s\n", writer.FormatAmount(s.TotalSavings))
	fmt.Fprintf(tw, "Mean savings\t%s\n", writer.FormatAmount(s.MeanSavings))
	fmt.Fprintf(tw, "Submitters\t%d\n", s.DistinctSubmitters)

	if len(s.BySubsystem) > 0 {
		fmt.Fprintf(tw, "\nSUBSYSTEM\tSAVINGS\n")
		for _, g := range s.BySubsystem {
			fmt.Fprintf(tw, "%s\t%s\n", g.Value, writer.FormatAmount(g.Savings))
		}
	}
	if len(s.ByStatus) > 0 {
		fmt.Fprintf(tw, "\nSTATUS\tIDEAS\n")
		for _, g := range s.ByStatus {
			fmt.Fprintf(tw, "%s\t%d\n", g.Value, g.Count)
		}
	}
	return tw.Flush()
}

func printIdeas(out io.Writer, ideas []models.Idea) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSUBSYSTEM\tPLATFORM\tSTATUS\tSAVINGS\tTITLE")
	for _, i := range ideas {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i.ID, formatDay(i.Date), i.Subsystem, i.Platform, i.Status,
			writer.FormatAmount(i.Savings), i.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d idea(s)\n", len(ideas))
	return err
}
