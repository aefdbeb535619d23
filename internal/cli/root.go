package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/flowc/internal/compiler"
	"github.com/me/flowc/internal/config"
	"github.com/me/flowc/internal/controlplane"
	"github.com/me/flowc/internal/declfile"
	"github.com/me/flowc/internal/logging"
	"github.com/me/flowc/internal/store"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

var (
	flagConfig  string
	flagDebug   bool
	flagLocalDB string

	cfg    *config.Config
	logger *slog.Logger
)

// registry is what the commands need from a control plane beyond the
// two operations the compiler consumes.
type registry interface {
	controlplane.ControlPlane
	CreateTask(ctx context.Context, tpl flow.TaskTemplate) error
	ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.WorkflowSummary, *model.Pagination, error)
}

// NewRootCmd creates the root cobra command for the flowc CLI.
func NewRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "flowc",
		Short: "flowc compiles workflow declarations into registrable workflow graphs",
		Long: "flowc turns YAML workflow declarations into typed workflow graphs, " +
			"validates them, registers them with a control plane and builds launch plans.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(v, flagConfig)
			if err != nil {
				return err
			}
			if flagDebug {
				loaded.LogLevel = "debug"
			}
			cfg = loaded
			logger, err = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			return err
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default ./flowc.yaml or ~/.flowc/flowc.yaml)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLocalDB, "local-db", "", "Use a local SQLite registry instead of the server")
	pf.String("server", "http://localhost:8080", "Control-plane server URL (or FLOWC_SERVER env)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.String("project", "", "Project for new identifiers (or FLOWC_PROJECT env)")
	pf.String("domain", "", "Domain for new identifiers (or FLOWC_DOMAIN env)")
	pf.String("version", "", "Version for new identifiers (or FLOWC_VERSION env)")
	for key, flag := range map[string]string{
		"server":     "server",
		"log_level":  "log-level",
		"log_format": "log-format",
		"project":    "project",
		"domain":     "domain",
		"version":    "version",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		newCompileCmd(),
		newValidateCmd(),
		newRegisterCmd(),
		newFetchCmd(),
		newLaunchPlanCmd(),
		newListCmd(),
	)

	return root
}

// newCompiler returns a compiler for the loaded compile context.
func newCompiler() *compiler.Compiler {
	return compiler.New(cfg.Compile(), logger)
}

// loadFile compiles the declaration file at path.
func loadFile(path string) (*declfile.Result, error) {
	return declfile.New(logger).Load(newCompiler(), path, cfg.Compile())
}

// openRegistry returns the configured control plane and a function
// releasing it.
func openRegistry(ctx context.Context) (registry, func(), error) {
	if flagLocalDB == "" {
		logger.Debug("using control-plane server", "url", cfg.Server)
		return controlplane.NewClient(cfg.Server, logger), func() {}, nil
	}

	st, err := store.NewSQLiteStore(flagLocalDB, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("migrate %s: %w", flagLocalDB, err)
	}
	logger.Debug("using local registry", "path", flagLocalDB)
	return controlplane.NewLocal(st, logger), func() { st.Close() }, nil
}
