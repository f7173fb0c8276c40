package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"radiex/internal/config"
	"radiex/internal/extraction"
	"radiex/internal/runner"
)

var titleCaser = cases.Title(language.Und)

// runFlags binds the run-time override flags shared by extract and batch.
type runFlags struct {
	mode             string
	workers          string
	outputDir        string
	scratchDir       string
	extractorCommand string
	backbone         string
	roiSelection     string
	verbosity        string
	modality         string
	categories       string
	dimensions       string
	minROIVolume     float64
	parallel         bool
	preprocessing    bool
	aggregateLesions bool
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.mode, "mode", "", "Extraction mode (handcrafted or deep)")
	flags.StringVar(&f.workers, "workers", "", `Worker count ("auto" or a positive integer)`)
	flags.StringVar(&f.outputDir, "output-dir", "", "Report output directory")
	flags.StringVar(&f.scratchDir, "scratch-dir", "", "Conversion cache directory")
	flags.StringVar(&f.extractorCommand, "extractor", "", "Feature-extraction command")
	flags.StringVar(&f.backbone, "backbone", "", "Deep-mode backbone (resnet50, vgg16, densenet121)")
	flags.StringVar(&f.roiSelection, "roi-selection", "", "Region handling (per_image or per_region)")
	flags.StringVar(&f.verbosity, "report-verbosity", "", "Report row filter (all, info, warning, error, none)")
	flags.StringVar(&f.modality, "modality", "", "Imaging modality (ct, mr, pet, other)")
	flags.StringVar(&f.categories, "categories", "", "Feature category filter, comma separated")
	flags.StringVar(&f.dimensions, "dimensions", "", "Feature dimensionality filter, comma separated")
	flags.Float64Var(&f.minROIVolume, "min-roi-volume", 0, "Minimum ROI volume in mm3 before a case is skipped")
	flags.BoolVar(&f.parallel, "parallel", true, "Run cases in parallel")
	flags.BoolVar(&f.preprocessing, "preprocessing", false, "Run the extractor's preprocessing stage")
	flags.BoolVar(&f.aggregateLesions, "aggregate-lesions", false, "Merge per-lesion rows into one row per lesion group")
}

// overrides turns changed flags into explicit overrides. Unchanged bool
// and float flags stay nil so file values survive.
func (f *runFlags) overrides(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{
		Mode:             f.mode,
		Workers:          f.workers,
		OutputDir:        f.outputDir,
		ScratchDir:       f.scratchDir,
		ExtractorCommand: f.extractorCommand,
		Backbone:         f.backbone,
		ROISelection:     f.roiSelection,
		Verbosity:        f.verbosity,
		Modality:         f.modality,
		Categories:       f.categories,
		Dimensions:       f.dimensions,
	}
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		v := f.parallel
		o.Parallel = &v
	}
	if flags.Changed("preprocessing") {
		v := f.preprocessing
		o.Preprocessing = &v
	}
	if flags.Changed("aggregate-lesions") {
		v := f.aggregateLesions
		o.AggregateLesions = &v
	}
	if flags.Changed("min-roi-volume") {
		v := f.minROIVolume
		o.MinROIVolume = &v
	}
	return o
}

func executeRun(cctx *commandContext, cmd *cobra.Command, flags *runFlags, input runner.Input) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	rc, err := config.Resolve(cfg, flags.overrides(cmd))
	if err != nil {
		return err
	}

	logger, err := cctx.newLogger(cfg, rc)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	store, err := cctx.openStore(cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "run history unavailable: %v\n", err)
		store = nil
	} else {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bar *progressbar.ProgressBar
	if stdoutIsTerminal() {
		bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription("extracting"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSpinnerType(14),
		)
	}

	r := &runner.Runner{
		Config: rc,
		Store:  store,
		Logger: logger,
		Observe: func(extraction.Outcome) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	}

	rep, err := r.Run(ctx, input)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), rep, rc)
	return nil
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printSummary(out io.Writer, rep *runner.Report, rc *config.RunConfig) {
	printSummaryAs(out, rep, rc, stdoutIsTerminal())
}

func printSummaryAs(out io.Writer, rep *runner.Report, rc *config.RunConfig, asTable bool) {
	rows := [][]string{
		{"Run", rep.RunID},
		{"Mode", titleCaser.String(string(rc.Mode))},
		{"Workers", strconv.Itoa(rc.Workers)},
		{"Duration", formatDuration(rep.FinishedAt.Sub(rep.StartedAt))},
		{"Submitted", strconv.Itoa(rep.Submitted)},
		{"Succeeded", strconv.Itoa(rep.Succeeded)},
		{"Skipped", strconv.Itoa(rep.Skipped)},
		{"Failed", strconv.Itoa(rep.Failed)},
		{"Unmatched", strconv.Itoa(len(rep.Unmatched))},
		{"Output", rep.OutputDir},
	}
	if asTable {
		fmt.Fprintln(out, renderTable([]tableColumn{{Title: "Field"}, {Title: "Value"}}, rows))
	} else {
		for _, row := range rows {
			fmt.Fprintf(out, "%s: %s\n", row[0], row[1])
		}
	}

	if rep.CompletedWithErrors {
		fmt.Fprintln(out, "Run completed with errors; see failures.csv for details")
	} else {
		fmt.Fprintln(out, "Run completed")
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
