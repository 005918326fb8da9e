package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/certgen/internal/tabular"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var (
		dataPath string
		rows     int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the columns and row count of a data file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(dataPath, rows, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "Participant list, .xlsx or .csv (required)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Also print the first n rows")
	cmd.MarkFlagRequired("data")
	return cmd
}

func runInspect(path string, n int, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	table, err := tabular.Parse(path, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "file:    %s\n", path)
	fmt.Fprintf(out, "rows:    %d\n", table.Len())
	fmt.Fprintf(out, "columns: %s\n", strings.Join(table.Columns, ", "))

	for i, row := range table.Preview(n) {
		cells := make([]string, len(table.Columns))
		for j, c := range table.Columns {
			cells[j] = c + "=" + row[c]
		}
		fmt.Fprintf(out, "%4d  %s\n", i+1, strings.Join(cells, "  "))
	}
	return nil
}
