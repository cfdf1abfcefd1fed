package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"crossmesh/internal/models"
	"crossmesh/pkg/cmfe"
	"crossmesh/pkg/comm"
	"crossmesh/pkg/config"
	"crossmesh/pkg/interpolation"
	"crossmesh/pkg/mesh"
	"crossmesh/pkg/partition"
	"crossmesh/pkg/scene"
	"crossmesh/pkg/visualization"
)

// summary is what one rank reports after an evaluation.
type summary struct {
	Rank     int
	Samples  int
	Found    int
	Fallback int
	Compared int
	MaxError float64
	Elapsed  time.Duration
	Balance  *partition.Report
}

func newRunCmd() *cobra.Command {
	var ranks int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the configured scene on in-process ranks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ranks") {
				cfg.Transport.Ranks = ranks
			}
			if cfg.Transport.Ranks < 1 {
				return fmt.Errorf("need at least one rank, got %d", cfg.Transport.Ranks)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			printBanner(cfg)
			summaries := make([]summary, cfg.Transport.Ranks)
			var mu sync.Mutex
			startTime := time.Now()
			err = comm.RunLocal(ctx, cfg.Transport.Ranks, func(ctx context.Context, c comm.Communicator) error {
				s, err := evaluateRank(ctx, c, cfg)
				if err != nil {
					return err
				}
				mu.Lock()
				summaries[c.Rank()] = s
				mu.Unlock()
				return nil
			})
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			printSummaries(summaries, time.Since(startTime))
			return nil
		},
	}
	cmd.Flags().IntVar(&ranks, "ranks", 0, "number of in-process ranks (default from configuration)")
	return cmd
}

// evaluateRank builds rank's share of the scene, evaluates it and checks
// the result against the analytic field.
func evaluateRank(ctx context.Context, c comm.Communicator, cfg *config.Config) (summary, error) {
	start := time.Now()
	log := logrus.NewEntry(logrus.StandardLogger())

	target, source, field, err := scene.Build(cfg, c.Rank(), c.Size())
	if err != nil {
		return summary{}, fmt.Errorf("building scene: %w", err)
	}

	params := cmfe.Params{
		SourceVar: cfg.Scene.SourceVar,
		TargetVar: cfg.Scene.TargetVar,
		OutputVar: cfg.Scene.OutputVar,
		Partition: partition.Options{
			Pivots:      cfg.Partition.Pivots,
			Tolerance:   cfg.Partition.Tolerance,
			MaxAttempts: cfg.Partition.MaxAttempts,
		},
		Interpolation: interpolation.Options{
			Tolerance:     cfg.Lookup.Tolerance,
			MaxIterations: cfg.Lookup.MaxIterations,
		},
		ReportBalance: true,
		Log:           log,
	}
	if c.Rank() == 0 && cfg.Output.Verbose {
		params.Progress = newProgressBar(os.Stderr).update
	}

	res, err := cmfe.Evaluate(ctx, c, target, source, params)
	if err != nil {
		return summary{}, err
	}

	maxErr, compared, err := scene.Compare(res.Output, res.OutputVar, res.Nodal, field, cfg.Scene.Fallback)
	if err != nil {
		return summary{}, err
	}
	s := summary{
		Rank:     c.Rank(),
		Samples:  res.Found + res.Fallback,
		Found:    res.Found,
		Fallback: res.Fallback,
		Compared: compared,
		MaxError: maxErr,
		Elapsed:  time.Since(start),
		Balance:  res.Balance,
	}
	log.WithFields(logrus.Fields{
		"rank":     s.Rank,
		"found":    s.Found,
		"fallback": s.Fallback,
		"maxError": s.MaxError,
	}).Info("rank finished")

	if c.Rank() == 0 && cfg.Output.SliceImage != "" {
		if err := saveSlice(res, cfg); err != nil {
			log.WithError(err).Warn("failed to save slice image")
		}
	}
	return s, nil
}

func saveSlice(res *cmfe.Result, cfg *config.Config) error {
	g, ok := res.Output.(*mesh.Rectilinear)
	if !ok {
		return fmt.Errorf("slice images need a rectilinear target, got %T", res.Output)
	}
	axis, err := models.ParseAxis(cfg.Output.SliceAxis)
	if err != nil {
		return err
	}
	viewer, err := visualization.NewViewer(g, res.OutputVar, res.Nodal, cfg.Scene.Fallback)
	if err != nil {
		return err
	}
	img, err := viewer.ExtractSlice(axis, cfg.Output.SliceIndex)
	if err != nil {
		return err
	}
	if err := visualization.SaveSlice(img, cfg.Output.SliceImage); err != nil {
		return err
	}
	lo, hi := viewer.Range()
	logrus.WithFields(logrus.Fields{"file": cfg.Output.SliceImage, "min": lo, "max": hi}).Info("slice image saved")
	return nil
}

func printBanner(cfg *config.Config) {
	fmt.Println("================================")
	fmt.Println("CROSS-MESH FIELD EVALUATION")
	fmt.Println("================================")
	fmt.Printf("Source: %s %v cells, split along %s\n", cfg.Scene.Source.Kind, cfg.Scene.Source.Cells, cfg.Scene.Source.SplitAxis)
	fmt.Printf("Target: %s %v cells, split along %s\n", cfg.Scene.Target.Kind, cfg.Scene.Target.Cells, cfg.Scene.Target.SplitAxis)
	fmt.Printf("Field:  %s = %s\n", cfg.Scene.SourceVar, cfg.Scene.Field)
	fmt.Printf("Ranks:  %d\n\n", cfg.Transport.Ranks)
}

func printSummaries(summaries []summary, elapsed time.Duration) {
	var total summary
	fmt.Printf("\nEvaluation completed in %.2f seconds\n\n", elapsed.Seconds())
	fmt.Printf("%6s %10s %10s %10s %14s %10s\n", "rank", "samples", "found", "fallback", "max error", "seconds")
	for _, s := range summaries {
		fmt.Printf("%6d %10d %10d %10d %14.3e %10.2f\n", s.Rank, s.Samples, s.Found, s.Fallback, s.MaxError, s.Elapsed.Seconds())
		total.Samples += s.Samples
		total.Found += s.Found
		total.Fallback += s.Fallback
		if s.MaxError > total.MaxError {
			total.MaxError = s.MaxError
		}
	}
	fmt.Printf("%6s %10d %10d %10d %14.3e\n", "all", total.Samples, total.Found, total.Fallback, total.MaxError)

	if len(summaries) > 0 && summaries[0].Balance != nil {
		b := summaries[0].Balance
		fmt.Println("\nPartition balance:")
		fmt.Printf("- Samples per rank: %v\n", b.Counts)
		fmt.Printf("- Mean %.1f, standard deviation %.1f, imbalance %.3f\n", b.Mean, b.StdDev, b.Imbalance)
	}
}

// progressBar draws the evaluation progress of one rank on a terminal line.
type progressBar struct {
	out  *os.File
	last int
}

func newProgressBar(out *os.File) *progressBar {
	return &progressBar{out: out, last: -1}
}

func (p *progressBar) update(completed, total int, message string) {
	const width = 40
	pct := 100
	if total > 0 {
		pct = completed * 100 / total
	}
	if pct == p.last {
		return
	}
	p.last = pct
	filled := pct * width / 100
	fmt.Fprintf(p.out, "\r[%s%s] %3d%% %s", strings.Repeat("#", filled), strings.Repeat(".", width-filled), pct, message)
	if completed >= total {
		fmt.Fprintln(p.out)
	}
}
