package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidforge/vidforge/internal/media"
)

type compareSample struct {
	Elapsed   time.Duration `json:"elapsed"`
	Primary   float64       `json:"primary"`
	Secondary float64       `json:"secondary"`
	Drift     float64       `json:"drift"`
}

func newCompareCommand() *cobra.Command {
	var (
		length    float64
		rate      float64
		runFor    time.Duration
		sampleGap time.Duration
		tick      time.Duration
		wipe      int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Play two simulated streams side by side and report how well they stay in sync",
		Long: "Plays an original and a processed stream in lock step. The processed stream runs at --rate " +
			"times real speed so drift builds up and the comparison has to snap it back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			duration := func(string) (float64, bool) { return length, true }
			primary := media.NewClock(media.NewSimulatedElement(media.SimulatedConfig{
				Duration:     duration,
				TickInterval: tick,
			}))
			secondary := media.NewClock(media.NewSimulatedElement(media.SimulatedConfig{
				Duration:     duration,
				TickInterval: tick,
				Rate:         rate,
			}))

			cmp, err := media.NewComparison(primary, secondary)
			if err != nil {
				return err
			}
			defer cmp.Close()

			cmp.Load("original.mp4", "processed.mp4")
			cmp.SetWipe(wipe)
			if err := cmp.Play(); err != nil {
				return fmt.Errorf("start playback: %w", err)
			}

			samples, err := sampleComparison(cmd, cmp, runFor, sampleGap)
			if err != nil {
				return err
			}
			cmp.Pause()

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"wipePercent":    cmp.Wipe(),
					"clipInsetRight": cmp.ClipInsetRight(),
					"samples":        samples,
				})
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(samples))
			worst := 0.0
			for _, s := range samples {
				worst = max(worst, s.Drift)
				rows = append(rows, []string{
					s.Elapsed.Round(time.Millisecond).String(),
					media.FormatTime(s.Primary) + fmt.Sprintf(" (%.2fs)", s.Primary),
					fmt.Sprintf("%.2fs", s.Secondary),
					fmt.Sprintf("%.3fs", s.Drift),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Elapsed", "Original", "Processed", "Drift"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				isTerminal(out),
			))
			fmt.Fprintf(out, "wipe %d%% (processed layer clipped %d%% from the right), worst drift %.3fs\n",
				cmp.Wipe(), cmp.ClipInsetRight(), worst)
			return nil
		},
	}

	cmd.Flags().Float64Var(&length, "length", 60, "Stream length in seconds")
	cmd.Flags().Float64Var(&rate, "rate", 1.05, "Playback rate of the processed stream")
	cmd.Flags().DurationVar(&runFor, "for", 3*time.Second, "How long to play")
	cmd.Flags().DurationVar(&sampleGap, "every", 500*time.Millisecond, "Sampling interval")
	cmd.Flags().DurationVar(&tick, "tick", 100*time.Millisecond, "Simulated decoder tick")
	cmd.Flags().IntVar(&wipe, "wipe", media.DefaultWipePercent, "Percent of the frame showing the processed stream")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of a table")
	return cmd
}

func sampleComparison(cmd *cobra.Command, cmp *media.Comparison, runFor, every time.Duration) ([]compareSample, error) {
	if every <= 0 {
		return nil, fmt.Errorf("sampling interval must be positive")
	}
	start := time.Now()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	deadline := time.After(runFor)

	var samples []compareSample
	for {
		select {
		case <-cmd.Context().Done():
			return samples, cmd.Context().Err()
		case <-deadline:
			return samples, nil
		case <-ticker.C:
			st := cmp.State()
			samples = append(samples, compareSample{
				Elapsed:   time.Since(start),
				Primary:   st.Primary.Position,
				Secondary: st.Secondary.Position,
				Drift:     cmp.Drift(),
			})
			if !st.Playing {
				return samples, nil
			}
		}
	}
}
