package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goblincore/clara"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "transcript [session-id]",
		Short: "Read archived transcripts",
		Long:  "Without a session id, lists the most recent sessions.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTranscript,
	}
	cmd.Flags().IntP("limit", "n", 20, "Max sessions to list")
	rootCmd.AddCommand(cmd)
}

func runTranscript(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.TranscriptPath == "" {
		return fmt.Errorf("transcript archive is disabled (set transcript_path or CLARA_TRANSCRIPT_DB)")
	}
	store, err := clara.NewStore(cfg.TranscriptPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 0 {
		sessions, err := store.RecentSessions(ctx, limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SESSION\tMESSAGES\tSTARTED\tLAST")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.ID, s.Messages,
				s.StartedAt.Local().Format(time.DateTime), s.LastAt.Local().Format(time.DateTime))
		}
		return nil
	}

	msgs, err := store.SessionMessages(ctx, args[0])
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("no transcript for session %s", args[0])
	}
	for _, m := range msgs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.CreatedAt.Local().Format(time.TimeOnly), m.Role, m.Content)
	}
	return nil
}
