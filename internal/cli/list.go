package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/flowc/pkg/model"
)

func newListCmd() *cobra.Command {
	var limit, offset int
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered workflows",
		Long:  "List workflows registered in the configured project and domain, or everywhere with --all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, release, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			opts := model.ListOptions{Limit: limit, Offset: offset}
			if !all {
				opts.Project, opts.Domain = cfg.Project, cfg.Domain
			}
			workflows, page, err := cp.ListWorkflows(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(workflows) == 0 {
				fmt.Fprintln(out, "No workflows found.")
				return nil
			}

			fmt.Fprintf(out, "%-50s  %-6s  %-4s  %s\n", "ID", "NODES", "SUBS", "CREATED")
			fmt.Fprintf(out, "%-50s  %-6s  %-4s  %s\n", "--", "-----", "----", "-------")
			for _, wf := range workflows {
				fmt.Fprintf(out, "%-50s  %-6d  %-4d  %s\n", wf.ID, wf.NodeCount, wf.SubWorkflows, wf.CreatedAt.Format("2006-01-02 15:04:05"))
			}

			if page != nil && page.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(workflows), page.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of workflows")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of workflows to skip")
	cmd.Flags().BoolVar(&all, "all", false, "List every project and domain")
	return cmd
}
