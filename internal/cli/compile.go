package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/flowc/internal/compiler"
	"github.com/me/flowc/internal/declfile"
)

func newCompileCmd() *cobra.Command {
	var output, workflow string

	cmd := &cobra.Command{
		Use:   "compile <declarations.yaml>",
		Short: "Compile a declaration file and print the workflow spec",
		Long: "Compile the main workflow (or --workflow) of a declaration file and print " +
			"its serialized spec, including every sub-workflow it reaches.",
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
			spec, err := w.Serialize()
			if err != nil {
				return err
			}
			logger.Debug("compiled workflow", "id", spec.Template.ID.String(),
				"nodes", len(spec.Template.Nodes), "sub_workflows", len(spec.SubWorkflows))
			return printDoc(cmd.OutOrStdout(), output, spec)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Workflow to compile (default: the file's main workflow)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <declarations.yaml>",
		Short: "Compile and validate every workflow in a declaration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadFile(args[0])
			if err != nil {
				return err
			}
			for _, name := range sortedNames(res.Workflows) {
				w := res.Workflows[name]
				if err := w.Validate(); err != nil {
					return fmt.Errorf("workflow %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok  %s\n", w.ID())
			}
			return nil
		},
	}
}

// pick returns the named workflow, or the main one when name is empty.
func pick(res *declfile.Result, name string) (*compiler.Workflow, error) {
	if name == "" {
		return res.Main, nil
	}
	w, ok := res.Workflows[name]
	if !ok {
		return nil, compiler.ErrorReference(name, "workflow is not declared in the file")
	}
	return w, nil
}

// printDoc writes v as YAML or JSON.
func printDoc(out io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}
