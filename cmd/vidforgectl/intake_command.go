package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vidforge/vidforge/internal/auth"
	"github.com/vidforge/vidforge/internal/intake"
	"github.com/vidforge/vidforge/internal/validate"
)

func newIntakeCommand(ctx *commandContext) *cobra.Command {
	intakeCmd := &cobra.Command{
		Use:   "intake",
		Short: "Validate and process local video files",
	}
	intakeCmd.AddCommand(newIntakeCheckCommand())
	intakeCmd.AddCommand(newIntakeSimulateCommand(ctx))
	return intakeCmd
}

// fileFromPath describes a local file the way a browser picker would.
func fileFromPath(path string) (intake.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return intake.File{}, err
	}
	if info.IsDir() {
		return intake.File{}, fmt.Errorf("%s is a directory", path)
	}
	return intake.File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: validate.TypeForExtension(path),
	}, nil
}

func newIntakeCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Report whether files would be accepted for upload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(args))
			rejected := 0
			for _, path := range args {
				f, err := fileFromPath(path)
				if err != nil {
					return err
				}
				verdict := "ok"
				if msg := validate.VideoFile(f.ContentType, f.Size); msg != "" {
					verdict = msg
					rejected++
				}
				contentType := f.ContentType
				if contentType == "" {
					contentType = "unknown"
				}
				rows = append(rows, []string{f.Name, contentType, humanize.IBytes(uint64(f.Size)), verdict})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Type", "Size", "Result"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				isTerminal(out),
			))
			if rejected > 0 {
				return fmt.Errorf("%d of %d files rejected", rejected, len(args))
			}
			return nil
		},
	}
}

func newIntakeSimulateCommand(cc *commandContext) *cobra.Command {
	var interval time.Duration
	var step, failAt int

	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Run a local file through submit and simulated processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			f, err := fileFromPath(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.TickInterval()
			}
			if !cmd.Flags().Changed("step") {
				step = cfg.Intake.Step
			}
			if !cmd.Flags().Changed("fail-at") {
				failAt = cfg.Intake.FailAt
			}

			out := cmd.OutOrStdout()
			done := make(chan intake.Session, 1)
			in := intake.New(intake.Config{
				Session: auth.UserSession(auth.User{ID: "cli", Email: "cli@localhost", Name: "vidforgectl"}),
				Processor: &intake.SimulatedProcessor{
					Interval: interval,
					Step:     step,
					FailAt:   failAt,
					Locator:  intake.StaticLocator(cfg.Intake.ResultURL),
				},
				ResultPoster: cfg.Intake.ResultPoster,
			})
			unsubscribe := in.Subscribe(func(s intake.Session) {
				switch s.Phase {
				case intake.PhaseProcessing:
					fmt.Fprintf(out, "processing %3d%%\n", s.Progress)
				case intake.PhaseComplete, intake.PhaseFailed:
					select {
					case done <- s:
					default:
					}
				}
			})
			defer unsubscribe()
			defer in.Reset()

			var verr *intake.ValidationError
			if err := in.Submit(cmd.Context(), &f); errors.As(err, &verr) {
				return fmt.Errorf("%s: %s", f.Name, verr.Message)
			} else if err != nil {
				return err
			}
			fmt.Fprintf(out, "accepted %s (%s)\n", f.Name, humanize.IBytes(uint64(f.Size)))

			if err := in.Process(cmd.Context()); err != nil {
				return err
			}

			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case s := <-done:
				if s.Phase == intake.PhaseFailed {
					return errors.New(s.FailureMessage)
				}
				fmt.Fprintf(out, "complete: %s\n", s.ResultURL)
				return nil
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", intake.DefaultProgressInterval, "Time between progress steps")
	cmd.Flags().IntVar(&step, "step", intake.DefaultProgressStep, "Percent added per step")
	cmd.Flags().IntVar(&failAt, "fail-at", 0, "Inject a processing fault at this percentage")
	return cmd
}
