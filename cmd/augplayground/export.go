package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"augplayground/pkg/config"
	"augplayground/pkg/pipeline"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export [payload.json]",
	Short: "Print the config or torchio snippet for a transform payload",
	Long: `Reads a transform payload (from the file argument, or the default
catalog when omitted) and prints either the torchio snippet or the JSON config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a default YAML config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "snippet", "Output format: snippet, json or catalog")
}

func runExport(cmd *cobra.Command, args []string) error {
	var payload map[string]any
	if len(args) == 1 {
		var err error
		if payload, err = readPayload(args[0]); err != nil {
			return err
		}
	} else {
		payload = pipeline.DefaultPayload()
	}

	cfg := pipeline.Export(pipeline.Build(payload))
	out := cmd.OutOrStdout()
	switch exportFormat {
	case "snippet":
		fmt.Fprintln(out, pipeline.Snippet(cfg))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "catalog":
		// a payload with every transform present and disabled, ready to edit
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pipeline.DefaultPayload())
	default:
		return fmt.Errorf("unknown format %q", exportFormat)
	}
	return nil
}
