// ABOUTME: dialogs subcommand: lists dialogs or prints one transcript from storage
// ABOUTME: Reads the configured backend directly, so it works while the gateway is down

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/handoff-gateway/internal/gateway"
	"github.com/2389/handoff-gateway/internal/store"
)

var (
	dialogsStatus string
	dialogsID     string
)

var dialogsCmd = &cobra.Command{
	Use:   "dialogs",
	Short: "List stored dialogs or show one transcript",
	Example: `  handoff-gateway dialogs
  handoff-gateway dialogs --status pending
  handoff-gateway dialogs --id 20260101120000-100`,
	RunE: runDialogs,
}

func init() {
	dialogsCmd.Flags().StringVarP(&dialogsStatus, "status", "s", "", "only show dialogs with this status (pending, active, closed)")
	dialogsCmd.Flags().StringVar(&dialogsID, "id", "", "print the transcript of one dialog")
}

func runDialogs(cmd *cobra.Command, _ []string) error {
	var status store.DialogStatus
	if dialogsStatus != "" {
		s, err := store.ParseDialogStatus(dialogsStatus)
		if err != nil {
			return err
		}
		status = s
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := gateway.OpenBackend(cfg.Storage)
	if err != nil {
		return err
	}
	dialogs := store.NewDocumentStore(cmd.Context(), backend, slog.New(slog.DiscardHandler))
	defer dialogs.Close()

	out := cmd.OutOrStdout()
	if dialogsID != "" {
		d, err := dialogs.GetDialog(cmd.Context(), dialogsID)
		if err != nil {
			return fmt.Errorf("dialog %s: %w", dialogsID, err)
		}
		printTranscript(out, d)
		return nil
	}

	list, err := dialogs.ListDialogs(cmd.Context(), status)
	if err != nil {
		return err
	}
	printDialogTable(out, list)
	return nil
}

func statusColor(s store.DialogStatus) string {
	switch s {
	case store.StatusPending:
		return color.YellowString(string(s))
	case store.StatusActive:
		return color.GreenString(string(s))
	default:
		return color.HiBlackString(string(s))
	}
}

func printDialogTable(w io.Writer, dialogs []*store.Dialog) {
	if len(dialogs) == 0 {
		fmt.Fprintln(w, "no dialogs")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tUSER\tPHONE\tOPERATOR\tCREATED\tMESSAGES")
	for _, d := range dialogs {
		operator := d.OperatorID
		if operator == "" {
			operator = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			d.ID,
			statusColor(d.Status),
			d.UserName,
			d.UserPhone,
			operator,
			d.CreatedAt.Local().Format(time.DateTime),
			len(d.Messages),
		)
	}
	_ = tw.Flush()
}

func printTranscript(w io.Writer, d *store.Dialog) {
	fmt.Fprintf(w, "Dialog %s (%s)\n", d.ID, statusColor(d.Status))
	fmt.Fprintf(w, "User:     %s %s", d.UserName, d.UserPhone)
	if d.Username != "" {
		fmt.Fprintf(w, " @%s", d.Username)
	}
	fmt.Fprintln(w)
	if d.OperatorID != "" {
		fmt.Fprintf(w, "Operator: %s\n", d.OperatorID)
	}
	if len(d.ButtonPath) > 0 {
		fmt.Fprintf(w, "Path:     %s\n", strings.Join(d.ButtonPath, " > "))
	}
	fmt.Fprintln(w)

	for _, m := range d.Messages {
		who := color.CyanString("user    ")
		if m.Sender == store.SenderOperator {
			who = color.MagentaString("operator")
		}
		fmt.Fprintf(w, "%s %s  %s\n", color.HiBlackString(m.Timestamp.Local().Format("15:04:05")), who, m.Text)
	}
}
