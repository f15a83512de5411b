package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"go-catmat-matcher/internal/catalog"
	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/internal/store"
)

type runOptions struct {
	catalogFile string
	input       string
	output      string
	workers     int
	high        float64
	low         float64
	persist     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match a material list in-process",
		Long: `Run a matching job in this process and write the review partition.

Examples:
  matcher run --catalog catmat.csv --input pedido.xlsx
  matcher run --catalog catmat.csv --input pedido.csv --high 0.9 --out review.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.catalogFile, "catalog", "c", "", "catalog CSV file (defaults to MATCHER_CATALOG_FILE)")
	f.StringVarP(&opts.input, "input", "i", "", "material list (.csv, .txt or .xlsx)")
	f.StringVarP(&opts.output, "out", "o", "", "export file; the extension selects csv, json or xlsx")
	f.IntVarP(&opts.workers, "workers", "w", 0, "parallel lookups (defaults to MATCHER_WORKERS)")
	f.Float64Var(&opts.high, "high", 0, "high threshold override")
	f.Float64Var(&opts.low, "low", 0, "low threshold override")
	f.BoolVar(&opts.persist, "persist", false, "record the job in MATCHER_DB_PATH")
	cmd.MarkFlagRequired("input")
	return cmd
}

func runJob(cmd *cobra.Command, opts runOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogFile := opts.catalogFile
	if catalogFile == "" {
		catalogFile = cfg.CatalogFile
	}
	if catalogFile == "" {
		return fmt.Errorf("no catalog file: pass --catalog or set MATCHER_CATALOG_FILE")
	}
	entries, err := catalog.LoadFile(catalogFile)
	if err != nil {
		return err
	}
	cat, err := catalog.NewMemory(cfg.CatalogCacheSize, catalog.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := cat.Publish(cfg.CatalogVersion, entries); err != nil {
		return err
	}

	in, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	records, err := pipeline.ParseMaterials(filepath.Base(opts.input), in, cfg.IngestLimits())
	in.Close()
	if err != nil {
		return err
	}

	options := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithDefaults(cfg.Defaults()),
	}
	if opts.persist {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		options = append(options, pipeline.WithStore(db))
	}
	controller := pipeline.NewController(cat, options...)
	defer controller.Close(context.Background())

	spec := model.JobSpec{Name: filepath.Base(opts.input), Concurrency: opts.workers}
	if cmd.Flags().Changed("high") || cmd.Flags().Changed("low") {
		t := cfg.Thresholds
		if cmd.Flags().Changed("high") {
			t.High = opts.high
		}
		if cmd.Flags().Changed("low") {
			t.Low = opts.low
		}
		spec.Thresholds = &t
	}
	jobID, err := controller.CreateJob(ctx, records, spec)
	if err != nil {
		return err
	}
	events, err := controller.Subscribe(ctx, jobID, 0)
	if err != nil {
		return err
	}
	if err := controller.Start(jobID); err != nil {
		return err
	}
	logger.Info("job started", "job_id", jobID, "records", len(records), "catalog_version", cfg.CatalogVersion)

	go func() {
		<-ctx.Done()
		_ = controller.Cancel(jobID)
	}()
	for ev := range events {
		attrs := []any{"seq", ev.Seq, "index", ev.SequenceIndex, "classification", ev.Classification}
		if ev.BestCandidate != nil {
			attrs = append(attrs, "catalog_id", ev.BestCandidate.CatalogID, "score", ev.BestCandidate.Score)
		}
		if ev.Error {
			attrs = append(attrs, "error", ev.ErrorMessage)
		}
		logger.Debug("record matched", attrs...)
	}

	partition, err := controller.GetReviewPartition(jobID)
	if err != nil {
		return err
	}
	printSummary(cmd, pipeline.Summarize(partition))

	if opts.output == "" {
		return nil
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.output)), ".")
	out, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	n, err := pipeline.ExportPartition(out, partition, format)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(opts.output)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d results to %s\n", n, opts.output)
	return nil
}

func printSummary(cmd *cobra.Command, s model.ReviewSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "job %s %s\n", s.JobID, s.State)
	fmt.Fprintf(w, "  total:     %d\n", s.Total)
	fmt.Fprintf(w, "  matched:   %d\n", s.Matched)
	fmt.Fprintf(w, "  pending:   %d\n", s.Pending)
	fmt.Fprintf(w, "  not found: %d (%d errors)\n", s.NotFound, s.Errors)
	if s.Matched > 0 {
		fmt.Fprintf(w, "  mean matched score: %.3f\n", s.MeanMatchedScore)
	}
}
