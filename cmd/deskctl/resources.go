package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agentdesk/internal/event"
	"agentdesk/internal/model"
	"agentdesk/internal/roster"
	"agentdesk/internal/service"
	"agentdesk/internal/undo"
)

func resourceCmd(resource string, short string) *cobra.Command {
	cmd := &cobra.Command{Use: resource, Short: short}
	cmd.AddCommand(resourceListCmd(resource))
	cmd.AddCommand(resourceDeleteCmd(resource))
	return cmd
}

func resourceListCmd(resource string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List " + resource,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := platformClient().List(cmd.Context(), resource)
			if err != nil {
				return err
			}
			order := roster.NameOrder(collation())
			sort.SliceStable(records, func(i, j int) bool { return order(records[i], records[j]) < 0 })

			if viper.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), records)
			}
			renderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func renderRecords(w io.Writer, records []model.Record) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Fields"})
	for _, r := range records {
		tw.AppendRow(table.Row{r.ID, r.Name, fieldSummary(r.Fields)})
	}
	tw.AppendFooter(table.Row{"", "Total", len(records)})
	tw.Render()
}

func fieldSummary(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "name" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func resourceDeleteCmd(resource string) *cobra.Command {
	var assumeYes, now bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one record; Ctrl-C during the countdown undoes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bus := event.NewBus()
			events, unsubscribe := bus.Subscribe()
			defer unsubscribe()

			desk, err := newDesk([]string{resource}, bus)
			if err != nil {
				return err
			}
			defer desk.Close()
			if err := desk.Refresh(cmd.Context(), resource); err != nil {
				return err
			}

			confirmer := undo.Confirmed
			if !assumeYes {
				confirmer = stdinConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			ticket, confirmed, err := desk.RequestDelete(cmd.Context(), resource, args[0], confirmer, actor())
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.ErrOrStderr(), "cancelled")
				return nil
			}
			if now {
				if _, err := desk.FinalizeNow(cmd.Context(), resource); err != nil {
					return err
				}
			}

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupt)
			return followDeletion(cmd.Context(), desk, resource, ticket.ID, events, interrupt, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&now, "now", false, "skip the undo window")
	return cmd
}

// followDeletion prints the countdown until the ticket resolves. An
// interrupt undoes the deletion while it is pending; once the platform call
// is out it waits for the answer instead.
func followDeletion(ctx context.Context, desk *service.DeskService, resource string, ticketID string, events <-chan event.Event, interrupt <-chan os.Signal, out io.Writer) error {
	undone := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-interrupt:
			applied, err := desk.Undo(resource)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintf(out, "\rdeletion already in progress, waiting for the platform%s\n", clearLine)
				continue
			}
			undone = true
		case e, ok := <-events:
			if !ok {
				return nil
			}
			n, isNotice := e.Payload.(undo.Notice)
			if !isNotice || n.TicketID != ticketID {
				continue
			}
			switch n.Type {
			case undo.NoticeCountdown:
				fmt.Fprintf(out, "\rDeleting %s in %2ds, Ctrl-C to undo ", n.RecordName, n.Countdown)
			case undo.NoticeRestored:
				fmt.Fprintf(out, "\r%s restored%s\n", n.RecordName, clearLine)
				if undone {
					return nil
				}
				// not our undo: the platform refused and the error notice follows
			case undo.NoticeError:
				return fmt.Errorf("%s", n.Message)
			case undo.NoticeDeleted:
				fmt.Fprintf(out, "\r%s deleted%s\n", n.RecordName, clearLine)
				return nil
			}
		}
	}
}

const clearLine = "\033[K"

func stdinConfirmer(in io.Reader, out io.Writer) undo.Confirmer {
	reader := bufio.NewReader(in)
	return undo.ConfirmFunc(func(_ context.Context, message string) bool {
		fmt.Fprintf(out, "%s [y/N] ", message)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
