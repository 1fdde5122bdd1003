package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/notify"
	"github.com/hyperjump/studybuddy/internal/schedule"
	"github.com/hyperjump/studybuddy/internal/timespec"
)

func newArmCmd(g *globals) *cobra.Command {
	var (
		spec    timespec.Spec
		seconds string
		message string
	)
	cmd := &cobra.Command{
		Use:   "arm",
		Short: "Arm a study timer or alarm and wait for it to fire",
		Example: `  studybuddy arm --type relative --seconds 1500
  studybuddy arm --type absolute --time "6:00 AM" --message "Morning review"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			defer e.logger.Sync()
			if cmd.Flags().Changed("seconds") {
				spec.Seconds = seconds
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			components, err := initializeComponents(ctx, e.cfg, e.logger, e.debug)
			if err != nil {
				return err
			}
			defer components.Close()
			if err := components.Scheduler.Start(ctx); err != nil {
				return err
			}
			defer shutdownScheduler(components.Scheduler, e.logger)

			t, err := components.Assistant.Schedule(ctx, &spec, message)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := cli.WriteTimer(out, t.Info(), e.format); err != nil {
				return err
			}
			return waitForTimers(ctx, []*schedule.Timer{t}, components.Feed, out, e.format)
		},
	}
	cmd.Flags().StringVar(&spec.Type, "type", timespec.TypeRelative, "relative or absolute")
	cmd.Flags().StringVar(&spec.Time, "time", "", `wall-clock time for absolute alarms, e.g. "6:00 AM"`)
	cmd.Flags().StringVar(&seconds, "seconds", "", "delay in seconds for relative timers")
	cmd.Flags().StringVarP(&message, "message", "m", "", "notice sent when the timer fires")
	return cmd
}

// waitForTimers blocks until every timer has fired or been cancelled, printing the fire
// notice of each. A cancelled ctx stops waiting; pending timers are cancelled by the caller's
// scheduler shutdown.
func waitForTimers(ctx context.Context, timers []*schedule.Timer, feed *notify.Feed, w io.Writer, format cli.OutputFormat) error {
	for _, t := range timers {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return nil
		}
		if t.State() != schedule.StateFired {
			continue
		}
		if ev, ok := firedEvent(feed, t.ID); ok {
			if err := cli.WriteEvent(w, ev, format); err != nil {
				return err
			}
		}
	}
	return nil
}

func firedEvent(feed *notify.Feed, id string) (notify.Event, bool) {
	for _, ev := range feed.Recent(0) {
		if ev.TimerID == id && ev.Kind != notify.EventTimerStarted {
			return ev, true
		}
	}
	return notify.Event{}, false
}

func shutdownScheduler(s *schedule.Scheduler, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Warn("timer shutdown", zap.Error(err))
	}
}
