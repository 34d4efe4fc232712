package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prasenjit/firescope/internal/capture"
	"github.com/prasenjit/firescope/internal/decoder"
	"github.com/prasenjit/firescope/internal/filter"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a captured request body into query descriptions",
	Long: `Reads a Firestore request body from a file, or stdin when no file is given,
and prints the query descriptions it carries as JSON.

Use --form for Listen channel bodies captured as application/x-www-form-urlencoded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

var (
	decodeURL  string
	decodeForm bool
	decodeAll  bool
)

func init() {
	decodeCmd.Flags().StringVar(&decodeURL, "url", "https://firestore.googleapis.com/v1/projects/demo/databases/(default)/documents:runQuery", "Request URL the body was sent to")
	decodeCmd.Flags().BoolVar(&decodeForm, "form", false, "Treat the body as form-encoded")
	decodeCmd.Flags().BoolVar(&decodeAll, "all", false, "Include descriptions without a collection")
}

func runDecode(cmd *cobra.Command, args []string) error {
	var (
		body []byte
		err  error
	)
	if len(args) == 1 {
		body, err = os.ReadFile(args[0])
	} else {
		body, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	contentType := "application/json"
	if decodeForm {
		contentType = "application/x-www-form-urlencoded"
	}

	descs := decoder.Decode(capture.NewCall("cli", decodeURL, "POST", "", contentType, body))
	if !decodeAll {
		descs = filter.Meaningful(descs)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(descs)
}
