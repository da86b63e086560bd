package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

type initResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [db...]",
		Short: "Create stores and apply their schemas",
		Long: "Open each named database, or every database with a schema file when none\n" +
			"is named, and create any missing tables and indexes. With --force every\n" +
			"table is dropped and recreated, which also clears a version mismatch.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			if err := os.MkdirAll(a.dataDir, 0o755); err != nil {
				return sysError(fmt.Errorf("create data directory: %w", err))
			}

			mgr, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := mgr.CloseAll(ctx); cerr != nil && err == nil {
					err = cerr
				}
			}()

			names := args
			if len(names) == 0 {
				for _, st := range mgr.Status() {
					names = append(names, st.Name)
				}
			}
			if len(names) == 0 {
				return userError(fmt.Errorf("no schema files in %s", a.schemaDir))
			}

			policy := types.InitOptions{CreateIfNotExists: true, ForceRecreate: force}
			results := make([]initResult, 0, len(names))
			for _, name := range names {
				mgr.SetCreationPolicy(name, policy)
				dao, err := mgr.EnsureConnection(ctx, name)
				if err != nil {
					return err
				}
				version, err := dao.GetSchemaVersion(ctx)
				if err != nil {
					return err
				}
				results = append(results, initResult{Name: name, Version: version})
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), results)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "initialized %s (schema version %s)\n", r.Name, r.Version)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "drop and recreate every table")
	return cmd
}
