package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yumyai/rrna16s/pkg/model"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions with their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		subs, err := store.ListSubmissions(cmd.Context())
		if err != nil {
			return err
		}
		return printSubmissions(cmd.OutOrStdout(), subs)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <analysis-uuid>",
	Short: "Print a submission and its sequences as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		sub, err := store.GetSubmission(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sub)
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results <analysis-uuid>",
	Short: "Print the stored BLAST records of a completed submission as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.GetResults(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), records)
	},
}

func init() {
	rootCmd.AddCommand(listCmd, statusCmd, resultsCmd)
}

func printSubmissions(w io.Writer, subs []*model.Submission) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANALYSIS UUID\tSTATUS\tCREATED\tUPDATED")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.UUID, s.Status,
			s.CreatedAt.Local().Format(time.DateTime), s.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
