package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tokei/datarecording"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables in a recording database.",
	Long: "`tables --db file.sqlite3` lists the recorded tables and their " +
		"row counts.",
	Run: func(cmd *cobra.Command, _ []string) {
		listTables(cmd)
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().String("db", "", "Path to the recording database")

	err := tablesCmd.MarkFlagRequired("db")
	if err != nil {
		panic(err)
	}
}

func listTables(cmd *cobra.Command) {
	path, _ := cmd.Flags().GetString("db")

	// Opening a missing path would create an empty database.
	_, err := os.Stat(path)
	if err != nil {
		fatalf("cannot open %s: %s", path, err)
	}

	reader := datarecording.NewReader(path)
	defer reader.Close()

	for _, name := range reader.ListTables() {
		// An empty struct maps every column to a discard, which still
		// yields the row count.
		reader.MapTable(name, struct{}{})

		_, count, err := reader.Query(
			context.Background(), name, datarecording.QueryParams{Limit: 1})
		if err != nil {
			fatalf("reading %s: %s", name, err)
		}

		fmt.Printf("%-24s %8d rows\n", name, count)
	}
}
