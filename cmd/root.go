// Package cmd implements the tablecache command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rowcache/tablecache/internal/config"
	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/logging"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// Version is the version of tablecache.
const Version = "0.1.0"

var errHandler tcerrors.ErrorHandler = tcerrors.NewDefaultCLIHandler()

var rootCmd = &cobra.Command{
	Use:   "tablecache",
	Short: "A virtualized row cache with a two-thread front/back pipeline.",
	Long:  "tablecache serves, exports and benchmarks a paginated, filterable, sortable row cache backed by SQLite.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
		if err := logging.InitGlobal(); err != nil {
			errHandler.Warning(fmt.Sprintf("logging disabled: %v", err))
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	rootCmd.Version = Version
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		errHandler.Error(err.Error())
		os.Exit(1)
	}
}

// demoSchema is the row shape every subcommand exercises: an integer
// primary key, a case-insensitive name used as the full-text column,
// a category, a numeric amount and a boolean flag.
func demoSchema() rowschema.Schema {
	return rowschema.Schema{Fields: []rowschema.FieldDescriptor{
		{Name: "id", Kind: rowschema.Integer},
		{Name: "name", Kind: rowschema.StringCollateNoCase, IsCommonText: true},
		{Name: "category", Kind: rowschema.String},
		{Name: "amount", Kind: rowschema.Double},
		{Name: "active", Kind: rowschema.Bool},
	}}
}
