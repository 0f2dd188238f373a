package main

import (
	"github.com/spf13/cobra"

	"agentdesk/internal/console"
	"agentdesk/internal/event"
)

func consoleCmd() *cobra.Command {
	var resources []string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive desk with countdown and undo",
		RunE: func(cmd *cobra.Command, args []string) error {
			bus := event.NewBus()
			desk, err := newDesk(resources, bus)
			if err != nil {
				return err
			}
			if err := desk.RefreshAll(cmd.Context()); err != nil {
				desk.Close()
				return err
			}
			poll, _ := cmd.Flags().GetDuration("poll-interval")
			return console.Run(cmd.Context(), desk, bus, console.Options{PollInterval: poll, Actor: actor()})
		},
	}
	cmd.Flags().StringSliceVar(&resources, "lists", []string{"agents", "escorts"}, "lists shown as tabs")
	cmd.Flags().Duration("poll-interval", 0, "refresh every list this often (0 disables)")
	return cmd
}
