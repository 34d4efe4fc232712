package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prasenjit/firescope/internal/querystring"
	"github.com/spf13/cobra"
)

var querystringCmd = &cobra.Command{
	Use:   "querystring",
	Short: "Encode or decode console query strings",
}

var querystringEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode JSON clauses read from stdin",
	Long: `Reads {"filters":[...],"orderBy":[...],"aggregations":[...],"limit":n}
from stdin and prints the console query string.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		var q querystring.Query
		if err := json.Unmarshal(data, &q); err != nil {
			return fmt.Errorf("invalid clauses: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), querystring.Encode(q.Filters, q.OrderBy, q.Aggregations, q.Limit))
		return nil
	},
}

var querystringDecodeCmd = &cobra.Command{
	Use:   "decode <query>",
	Short: "Decode a console query string into JSON clauses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := querystring.Decode(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	},
}

func init() {
	querystringCmd.AddCommand(querystringEncodeCmd)
	querystringCmd.AddCommand(querystringDecodeCmd)
}
