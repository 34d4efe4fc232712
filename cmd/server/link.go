package main

import (
	"fmt"

	"github.com/prasenjit/firescope/internal/consolelink"
	"github.com/prasenjit/firescope/internal/querystring"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Build a Firebase console link",
	Long: `Builds the Firebase console URL of a document, a collection or a query.

The project and database are taken from --url, any Firestore API URL of the
target database. --query accepts a console query string, for example one
printed by "firescope querystring encode".`,
	Args: cobra.NoArgs,
	RunE: runLink,
}

var (
	linkURL        string
	linkCollection string
	linkDocument   string
	linkQuery      string
	linkGroup      bool
)

func init() {
	linkCmd.Flags().StringVar(&linkURL, "url", "", "Firestore API URL of the target database")
	linkCmd.Flags().StringVar(&linkCollection, "collection", "", "Collection path")
	linkCmd.Flags().StringVar(&linkDocument, "doc", "", "Document id")
	linkCmd.Flags().StringVar(&linkQuery, "query", "", "Console query string")
	linkCmd.Flags().BoolVar(&linkGroup, "group", false, "Query a collection group")
	linkCmd.MarkFlagRequired("url")
	linkCmd.MarkFlagRequired("collection")
}

func runLink(cmd *cobra.Command, args []string) error {
	var info *consolelink.QueryInfo
	if linkQuery != "" || linkGroup {
		q, err := querystring.Decode(linkQuery)
		if err != nil {
			return fmt.Errorf("invalid query string: %w", err)
		}
		info = &consolelink.QueryInfo{
			IsCollectionGroup: linkGroup,
			Filters:           q.Filters,
			OrderBy:           q.OrderBy,
			Aggregations:      q.Aggregations,
			Limit:             q.Limit,
		}
	}

	link, ok := consolelink.Build(linkURL, linkCollection, linkDocument, info)
	if !ok {
		return fmt.Errorf("no project id in %q", linkURL)
	}
	fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}
