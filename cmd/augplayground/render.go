package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"augplayground/internal/models"
	"augplayground/pkg/config"
	"augplayground/pkg/hdf5conv"
	"augplayground/pkg/ingest"
	"augplayground/pkg/pipeline"
	"augplayground/pkg/visualization"
)

var (
	renderAxis      string
	renderOutputDir string
	renderPayload   string
	renderSeed      string
	renderWorkers   int
)

var renderCmd = &cobra.Command{
	Use:   "render <volume>",
	Short: "Augment a volume and save every slice as PNG",
	Long: `Loads a .nii, .nii.gz, .h5 or .hdf5 volume, applies the transforms from a
JSON payload (the same shape the web UI posts) and writes one PNG per slice.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderAxis, "axis", "a", "all", "Axis to render: sagittal, coronal, axial or all")
	renderCmd.Flags().StringVarP(&renderOutputDir, "output", "o", "slices", "Directory to save slices")
	renderCmd.Flags().StringVarP(&renderPayload, "transforms", "t", "", "JSON transform payload file")
	renderCmd.Flags().StringVar(&renderSeed, "seed", "", "Seed for the augmentation pipeline")
	renderCmd.Flags().IntVarP(&renderWorkers, "workers", "w", 0, "Number of render workers (default from config)")
}

// loadVolume reads a NIfTI or HDF5 file from disk
func loadVolume(cfg *config.Config, path string) (*models.Volume, error) {
	if hdf5conv.HasSuffix(path) {
		vol, dataset, err := hdf5conv.NewConverter(nil).LoadFile(path)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Using HDF5 dataset %q\n", dataset)
		return vol, nil
	}
	return ingest.NewLoader(cfg.Upload.TempDir, cfg.Upload.MaxBytes).LoadFile(path)
}

// readPayload loads the transform payload file; an empty path means none
func readPayload(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transforms: %w", err)
	}
	defer f.Close()
	return pipeline.DecodePayload(f)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workers := cfg.Render.Workers
	if renderWorkers > 0 {
		workers = renderWorkers
	}

	axes := []visualization.Axis{visualization.Sagittal, visualization.Coronal, visualization.Axial}
	if renderAxis != "all" {
		axis, err := visualization.ParseAxis(renderAxis)
		if err != nil {
			return err
		}
		axes = []visualization.Axis{axis}
	}

	var seed *int64
	if renderSeed != "" {
		if seed, err = pipeline.ParseSeed(renderSeed); err != nil {
			return err
		}
	}

	vol, err := loadVolume(cfg, args[0])
	if err != nil {
		return err
	}
	shape := vol.Shape()
	fmt.Printf("Loaded %s with shape (%d, %d, %d)\n", args[0], shape[0], shape[1], shape[2])

	payload, err := readPayload(renderPayload)
	if err != nil {
		return err
	}
	specs := pipeline.Build(payload)
	for i, spec := range specs {
		fmt.Printf("  %d. %s\n", i+1, spec.Name())
	}

	executor := pipeline.NewExecutor()
	startTime := time.Now()
	out, err := executor.Apply(cmd.Context(), vol, specs, seed)
	if err != nil {
		return err
	}
	fmt.Printf("Applied %d transforms in %.2f seconds\n", len(specs), time.Since(startTime).Seconds())

	viewer := visualization.NewViewer(out)
	for _, axis := range axes {
		axisDir := filepath.Join(renderOutputDir, axis.String())
		fmt.Printf("Saving %s slices to: %s\n", axis, axisDir)
		n, err := viewer.SaveSliceSequence(cmd.Context(), axis, axisDir, workers)
		if err != nil {
			return fmt.Errorf("failed to save %s slices: %w", axis, err)
		}
		fmt.Printf("Wrote %d slices\n", n)
	}
	return nil
}
