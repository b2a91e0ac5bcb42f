package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/likelovehate/internal/adapter/filestore"
)

func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every reaction as an indented JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			data, err := svc.ExportAll(cmd.Context())
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "write to this file instead of stdout (e.g. reactions_export.json)")
	return cmd
}

func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <itemId>",
		Short: "List the reactions on one item, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			result, err := svc.GetItemReactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, result.Reactions)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tUSER NAME\tREACTION\tTIMESTAMP")
			for _, r := range result.Reactions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UserID, r.UserName, r.Kind, r.Timestamp.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <itemId>",
		Short: "Show reaction counts for one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd)
			if err != nil {
				return err
			}
			result, err := svc.GetItemReactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, result.Stats)
			}
			s := result.Stats
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "likes: %d\nloves: %d\nhates: %d\ntotal: %d\n", s.Likes, s.Loves, s.Hates, s.Total)
			return err
		},
	}
}

func NewRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Drop malformed entries and rewrite the data file",
		Long: `repair loads the data file, keeps every entry that decodes to a valid
reaction (re-keyed as <itemId>_<userId>) and writes the result back. The
previous file is kept as <data-file>.bak.

A file that cannot be parsed at all is left untouched unless --force is given,
in which case it is replaced by an empty document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")

			report, err := store.Repair(cmd.Context(), force)
			if errors.Is(err, filestore.ErrUnreadableDocument) {
				return fmt.Errorf("%w (nothing written; rerun with --force to replace it with an empty document)", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "kept %d, dropped %d\n", report.Kept, report.Dropped); err != nil {
				return err
			}
			if report.Backup != "" {
				_, err = fmt.Fprintf(out, "backup written to %s\n", report.Backup)
			}
			return err
		},
	}
	cmd.Flags().Bool("force", false, "rewrite even when the data file could not be parsed")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
