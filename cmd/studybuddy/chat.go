package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/schedule"
)

type chatOutput struct {
	Reply  string          `json:"reply"`
	Timers []schedule.Info `json:"timers,omitempty"`
}

func newChatCmd(g *globals) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the assistant",
		Long: `Routes the message like the /chat endpoint: study questions, questions about
indexed documents and timer requests. Timers armed by the message are awaited unless
--wait=false.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

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

			reply := components.Assistant.Chat(ctx, joinArgs(args))
			timers := components.Scheduler.Pending()

			out := cmd.OutOrStdout()
			if e.format == cli.OutputJSON {
				res := chatOutput{Reply: reply}
				for _, t := range timers {
					res.Timers = append(res.Timers, t.Info())
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, reply)
			}
			if !wait {
				return nil
			}
			return waitForTimers(ctx, timers, components.Feed, out, e.format)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", true, "wait for timers armed by the message")
	return cmd
}
