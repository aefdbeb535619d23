package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/me/flowc/internal/controlplane"
)

func newRegisterCmd() *cobra.Command {
	var name, workflow string

	cmd := &cobra.Command{
		Use:   "register <declarations.yaml>",
		Short: "Register a workflow and its tasks with the control plane",
		Long: "Create every task declared in the file, then register the main workflow " +
			"(or --workflow) under project/domain/name/version. A project, domain or " +
			"version set in the file wins over the config. Entities that already " +
			"exist are left untouched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadFile(args[0])
			if err != nil {
				return err
			}
			w, err := pick(res, workflow)
			if err != nil {
				return err
			}
			if name == "" {
				name = w.ID().Name
			}

			cp, release, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			for _, task := range res.Tasks {
				err := cp.CreateTask(cmd.Context(), task.Template())
				switch {
				case err == nil:
					fmt.Fprintf(out, "Task registered: %s\n", task.ID())
				case controlplane.IsAlreadyExists(err):
					fmt.Fprintf(out, "Task exists:     %s\n", task.ID())
				default:
					return fmt.Errorf("register task %s: %w", task.ID(), err)
				}
			}

			scope := res.Scope
			id, err := w.Register(cmd.Context(), cp, scope.Project, scope.Domain, name, scope.Version)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Workflow registered: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name to register under (default: the workflow's declared name)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Workflow to register (default: the file's main workflow)")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <name>",
		Short: "Fetch a registered workflow and print its template",
		Long: "Retrieve a workflow from the control plane, rebuild it with its tasks and " +
			"sub-workflows, and print the template. Project, domain and version come from the config.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, release, err := openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			w, err := newCompiler().Fetch(cmd.Context(), cp, cfg.Project, cfg.Domain, args[0], "")
			if err != nil {
				return err
			}
			logger.Debug("fetched", "id", w.ID().String(), "phase", string(w.Phase()))
			return printDoc(cmd.OutOrStdout(), output, w.Template())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
