package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

type infoOutput struct {
	*types.DatabaseInfo
	Path string `json:"path"`
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <db>",
		Short: "Show version, tables and size of an existing store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := filepath.Join(a.dataDir, name+".db")
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return userError(types.NewConnectionError("info", name, path+" (run unisql init)", types.ErrStoreMissing))
			}

			return a.withDAO(cmd.Context(), name, func(dao types.DAO) error {
				info, err := dao.GetDatabaseInfo(cmd.Context())
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), infoOutput{DatabaseInfo: info, Path: path})
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Name:      %s\n", info.Name)
				fmt.Fprintf(w, "Path:      %s\n", path)
				fmt.Fprintf(w, "Version:   %s\n", info.Version)
				fmt.Fprintf(w, "Tables:    %s\n", strings.Join(info.Tables, ", "))
				fmt.Fprintf(w, "Size:      %d pages of %d bytes\n", info.PageCount, info.PageSize)
				return nil
			})
		},
	}
}
