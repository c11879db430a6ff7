package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"augplayground/pkg/hdf5conv"
)

var convertOutput string

var convertCmd = &cobra.Command{
	Use:   "convert-h5 <file.h5>",
	Short: "Convert an HDF5 volume to .nii.gz",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file (default: input name with .nii.gz)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	if !hdf5conv.HasSuffix(input) {
		return fmt.Errorf("expected a .h5 or .hdf5 file, got %s", input)
	}
	output := convertOutput
	if output == "" {
		output = hdf5conv.OutputName(input)
	}

	data, err := hdf5conv.NewConverter(nil).ConvertFile(input)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Printf("Converted %s to %s (%d bytes)\n", input, output, len(data))
	return nil
}
