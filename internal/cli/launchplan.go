package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/flowc/internal/compiler"
	"github.com/me/flowc/pkg/flow"
)

func newLaunchPlanCmd() *cobra.Command {
	var (
		output, workflow           string
		fixed, defaults            []string
		labels, annotations        []string
		cron, kickoffInput         string
		role, iamRole, serviceAcct string
		notifyEmail, notifyPhases  []string
	)

	cmd := &cobra.Command{
		Use:   "launch-plan <declarations.yaml>",
		Short: "Build a launch plan for a workflow and print it",
		Long: "Build a launch plan for the main workflow (or --workflow). Values given to " +
			"--fixed and --default are parsed as YAML scalars or flow sequences, so " +
			"--fixed n=3 is an integer and --default tags=[a,b] is a list.",
		Example: "  flowc launch-plan pipeline.yaml --fixed x=3 --label team=genomics --cron '0 * * * *'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadFile(args[0])
			if err != nil {
				return err
			}
			w, err := pick(res, workflow)
			if err != nil {
				return err
			}

			opts := compiler.LaunchPlanOptions{
				Schedule:                 flow.Schedule{CronExpression: cron, KickoffTimeInputArg: kickoffInput},
				Role:                     role,
				AssumableIAMRole:         iamRole,
				KubernetesServiceAccount: serviceAcct,
			}
			if opts.FixedInputs, err = parseValues("--fixed", fixed); err != nil {
				return err
			}
			values, err := parseValues("--default", defaults)
			if err != nil {
				return err
			}
			if opts.DefaultInputs, err = defaultInputs(w, values); err != nil {
				return err
			}
			if opts.Labels, err = parsePairs("--label", labels); err != nil {
				return err
			}
			if opts.Annotations, err = parsePairs("--annotation", annotations); err != nil {
				return err
			}
			if len(notifyEmail) > 0 {
				opts.Notifications = []flow.Notification{{Phases: notifyPhases, Email: notifyEmail}}
			}

			lp, err := w.CreateLaunchPlan(opts)
			if err != nil {
				return err
			}
			return printDoc(cmd.OutOrStdout(), output, lp.Spec())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "yaml", "Output format (yaml, json)")
	f.StringVar(&workflow, "workflow", "", "Workflow to plan (default: the file's main workflow)")
	f.StringArrayVar(&fixed, "fixed", nil, "Pin an input: name=value (repeatable)")
	f.StringArrayVar(&defaults, "default", nil, "Override an input default: name=value (repeatable)")
	f.StringArrayVar(&labels, "label", nil, "Attach a label: key=value (repeatable)")
	f.StringArrayVar(&annotations, "annotation", nil, "Attach an annotation: key=value (repeatable)")
	f.StringVar(&cron, "cron", "", "Cron schedule expression")
	f.StringVar(&kickoffInput, "kickoff-input", "", "Input receiving the scheduled kickoff time")
	f.StringVar(&role, "role", "", "Deprecated: IAM role to assume")
	f.StringVar(&iamRole, "iam-role", "", "IAM role executions assume")
	f.StringVar(&serviceAcct, "service-account", "", "Kubernetes service account executions run as")
	f.StringSliceVar(&notifyEmail, "notify-email", nil, "Email recipients of phase notifications")
	f.StringSliceVar(&notifyPhases, "notify-phases", []string{"SUCCEEDED", "FAILED"}, "Phases that trigger --notify-email")
	return cmd
}

// parsePairs splits key=value arguments.
func parsePairs(flag string, args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%s %q: expected key=value", flag, arg)
		}
		out[k] = v
	}
	return out, nil
}

// parseValues splits name=value arguments and decodes each value as YAML.
func parseValues(flag string, args []string) (map[string]any, error) {
	pairs, err := parsePairs(flag, args)
	if err != nil || pairs == nil {
		return nil, err
	}
	out := make(map[string]any, len(pairs))
	for k, raw := range pairs {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s %s: %w", flag, k, err)
		}
		out[k] = v
	}
	return out, nil
}

// defaultInputs turns decoded values into optional inputs typed like the
// workflow inputs they override. Values for names the workflow does not
// declare keep their inferred type; CreateLaunchPlan rejects them.
func defaultInputs(w *compiler.Workflow, values map[string]any) (map[string]*compiler.Input, error) {
	if len(values) == 0 {
		return nil, nil
	}
	declared := w.Interface().Inputs
	out := make(map[string]*compiler.Input, len(values))
	for name, v := range values {
		variable, ok := declared[name]
		if !ok {
			lit, err := flow.LiteralFromGo(v)
			if err != nil {
				return nil, compiler.ErrorType(name, "any", fmt.Sprintf("%T", v))
			}
			variable.Type = lit.Type()
		}
		lit, err := flow.PackLiteral(v, variable.Type)
		if err != nil {
			return nil, compiler.ErrorType(name, variable.Type.String(), fmt.Sprintf("%T", v))
		}
		in, err := compiler.NewInput(name, variable.Type, compiler.WithDefault(lit))
		if err != nil {
			return nil, err
		}
		out[name] = in
	}
	return out, nil
}
