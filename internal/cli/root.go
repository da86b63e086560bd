// Package cli implements the unisql command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/internal/config"
	"github.com/mesh-intelligence/unisql/internal/logging"
	"github.com/mesh-intelligence/unisql/internal/paths"
	"github.com/mesh-intelligence/unisql/pkg/types"
	"github.com/mesh-intelligence/unisql/pkg/unisql"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// exitCode maps err to a process exit code. Store and integrity failures
// are system errors; everything else is the caller's to fix.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if types.IsConnectionError(err) || types.IsIntegrityError(err) {
		return exitSysError
	}
	return exitUserError
}

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	schemaDir string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	flags     rootFlags
	cfg       *config.File
	configDir string
	dataDir   string
	schemaDir string
	log       *logging.Logger
}

// NewRootCmd creates the top-level "unisql" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "unisql",
		Short: "Schema-driven access to a set of embedded SQLite databases",
		Long: "unisql opens logical databases described by schema files, keeps their\n" +
			"physical stores in a data directory and runs queries and imports against them.",
		Version:           unisql.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.unisql-db)")
	pf.StringVar(&a.flags.schemaDir, "schema-dir", "", "schema directory (default: <config-dir>/schemas)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newInfoCmd(a),
		newStatusCmd(a),
		newExecCmd(a),
		newSelectCmd(a),
		newImportCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "unisql:", err)
		os.Exit(exitCode(err))
	}
}

// load resolves directories and reads config.yaml before any subcommand
// runs.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}

	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, cfg.DataDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	schemaDir, err := paths.ResolveSchemaDir(a.flags.schemaDir, cfg.SchemaDir, configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve schema dir: %w", err))
	}

	a.cfg = cfg
	a.configDir = configDir
	a.dataDir = dataDir
	a.schemaDir = schemaDir
	a.log = logging.New(cfg.Log, unisql.Version).With("component", "cli")
	a.log.Debug("configuration loaded", "config_dir", configDir, "data_dir", dataDir, "schema_dir", schemaDir)
	return nil
}

// open builds a manager over the schema directory and activates the
// configured roles. The caller closes it with CloseAll.
func (a *app) open(ctx context.Context) (types.ConnectionManager, error) {
	opts := []unisql.Option{unisql.WithLogger(a.log.Logger)}
	if info, err := os.Stat(a.schemaDir); err == nil && info.IsDir() {
		opts = append(opts, unisql.WithSchemaDir(a.schemaDir))
	}

	mgr, err := unisql.New(a.cfg.Manager(a.dataDir), opts...)
	if err != nil {
		return nil, err
	}
	if len(a.cfg.Roles) > 0 {
		if err := mgr.SetUserRoles(ctx, a.cfg.Roles, a.cfg.PrimaryRole); err != nil {
			_ = mgr.CloseAll(ctx)
			return nil, err
		}
	}
	return mgr, nil
}

// withDAO opens the manager, hands fn the DAO for name and closes
// everything afterwards.
func (a *app) withDAO(ctx context.Context, name string, fn func(dao types.DAO) error) (err error) {
	mgr, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mgr.CloseAll(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	dao, err := mgr.GetOrOpenConnection(ctx, name)
	if err != nil {
		return err
	}
	return fn(dao)
}
