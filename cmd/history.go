package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"auto_blog_publisher/history"
)

func NewHistoryCommand(root *rootOptions) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print published posts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root.configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.historyStore().Load()
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(records) {
				records = records[len(records)-limit:]
			}
			return printRecords(cmd, records, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only print the most recent n posts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func printRecords(cmd *cobra.Command, records []history.Record, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		if records == nil {
			records = []history.Record{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "no posts published yet")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  %-40s  %s\n", r.PublishedAt.Format("2006-01-02 15:04"), r.Topic, r.PostURL)
	}
	return nil
}
