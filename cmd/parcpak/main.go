package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/voxelai/parcpak/internal/models"
	"github.com/voxelai/parcpak/pkg/config"
	"github.com/voxelai/parcpak/pkg/fetch"
	"github.com/voxelai/parcpak/pkg/logging"
	"github.com/voxelai/parcpak/pkg/masker"
	"github.com/voxelai/parcpak/pkg/nifti"
	"github.com/voxelai/parcpak/pkg/reduce"
	"github.com/voxelai/parcpak/pkg/table"
	"github.com/voxelai/parcpak/pkg/visualization"
)

// options holds the parsed command line
type options struct {
	configPath  string
	input       string
	volumeIndex int
	fetchOnly   bool
	writeConfig string
	set         map[string]string
	overwrite   bool
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file")
	input := flag.String("input", "", "NIfTI volume to summarize (.nii or .nii.gz)")
	flag.String("metric", "mean", "Regional statistic: sum, mean, median, minimum, maximum, variance, standard_deviation")
	flag.String("resolution", "2", "Atlas resolution in mm: 1 or 2")
	flag.String("cache-dir", "", "Atlas cache directory (default ~/parcpak_data)")
	flag.String("base-url", "", "Atlas repository root URL")
	overwrite := flag.Bool("overwrite", false, "Download atlas files even when they are cached")
	flag.String("output", "", "Output table path (default stdout)")
	flag.String("format", "csv", "Output format: csv or arrow")
	flag.String("preview-dir", "", "Directory to save QC slice previews")
	flag.String("log-level", "", "Log level: debug, info, warn, error")
	volumeIndex := flag.Int("volume", 0, "Volume to use from a 4D input")
	fetchOnly := flag.Bool("fetch-only", false, "Download the atlas catalog and exit")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	flag.Parse()

	opts := options{
		configPath:  *configPath,
		input:       *input,
		volumeIndex: *volumeIndex,
		fetchOnly:   *fetchOnly,
		writeConfig: *writeConfig,
		overwrite:   *overwrite,
		set:         make(map[string]string),
	}
	// Only flags given explicitly override the config file
	flag.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = f.Value.String()
	})

	if opts.writeConfig == "" && !opts.fetchOnly && opts.input == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Fatalf("parcpak: %v", err)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	if opts.writeConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.writeConfig); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Default configuration written to %s\n", opts.writeConfig)
		return nil
	}

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	if err := applyFlags(cfg, opts); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Mode:       cfg.Logging.Mode,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	fetchCfg, err := cfg.FetchConfig()
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second}
	fetcher, err := fetch.New(fetchCfg, fetch.WithHTTPClient(client), fetch.WithLogger(logger))
	if err != nil {
		return err
	}

	res := models.Resolution(cfg.Reduce.Resolution)
	if opts.fetchOnly {
		atlases, err := fetcher.ResolveCatalog(ctx, res, cfg.Fetch.Overwrite)
		if err != nil {
			return err
		}
		logger.Info("Atlas catalog ready",
			zap.Int("atlases", len(atlases)),
			zap.String("cacheRoot", fetcher.CacheRoot()),
			zap.Stringer("resolution", res))
		return nil
	}

	volume, err := loadVolume(opts.input, opts.volumeIndex)
	if err != nil {
		return err
	}
	logger.Info("Loaded volume",
		zap.String("path", opts.input),
		zap.Ints("dims", []int{volume.Nx, volume.Ny, volume.Nz}))

	lm := masker.New(masker.WithLogger(logger))
	reducer := reduce.New(fetcher, lm, reduce.WithLogger(logger))

	startTime := time.Now()
	result, err := reducer.Summarize(ctx, volume, models.StatKind(cfg.Reduce.Metric), res, cfg.Fetch.Overwrite)
	if err != nil {
		return err
	}
	logger.Info("Reduction completed",
		zap.Int("rows", len(result)),
		zap.Int("parcellations", len(result.Parcellations())),
		zap.Duration("elapsed", time.Since(startTime)))

	if err := writeTable(cfg, result, stdout); err != nil {
		return err
	}

	if cfg.Output.PreviewDir != "" {
		if err := savePreviews(ctx, cfg.Output.PreviewDir, volume, fetcher, res, logger); err != nil {
			logger.Warn("Failed to save previews", zap.Error(err))
		}
	}
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration
func applyFlags(cfg *config.Config, opts options) error {
	for name, value := range opts.set {
		switch name {
		case "metric":
			cfg.Reduce.Metric = value
		case "resolution":
			res, err := models.ParseResolution(value)
			if err != nil {
				return err
			}
			cfg.Reduce.Resolution = int(res)
		case "cache-dir":
			cfg.Fetch.CacheRoot = value
		case "base-url":
			cfg.Fetch.BaseURL = value
		case "overwrite":
			cfg.Fetch.Overwrite = opts.overwrite
		case "output":
			cfg.Output.Path = value
		case "format":
			cfg.Output.Format = value
		case "preview-dir":
			cfg.Output.PreviewDir = value
		case "log-level":
			cfg.Logging.Level = value
		}
	}
	return nil
}

func loadVolume(path string, index int) (*nifti.Image, error) {
	img, err := nifti.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load input volume: %w", err)
	}
	if img.Nt == 1 && index == 0 {
		return img, nil
	}
	vol, err := img.Volume(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	return vol, nil
}

func writeTable(cfg *config.Config, result models.ResultTable, stdout io.Writer) error {
	if cfg.Output.Path == "" {
		return table.Write(stdout, result, cfg.Output.Format)
	}

	f, err := os.Create(cfg.Output.Path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := table.Write(f, result, cfg.Output.Format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", cfg.Output.Path, err)
	}
	return f.Close()
}

// savePreviews writes mid-slice JPEGs of the subject volume and of every
// atlas aligned to the subject grid. The catalog is already cached, so
// resolving it again does not transfer anything.
func savePreviews(ctx context.Context, dir string, volume *nifti.Image, fetcher *fetch.Fetcher, res models.Resolution, logger *zap.Logger) error {
	if _, err := visualization.NewViewer(volume).SaveMidSlices(dir, "subject"); err != nil {
		return err
	}

	atlases, err := fetcher.ResolveCatalog(ctx, res, false)
	if err != nil {
		return err
	}
	for _, atlas := range atlases {
		labels, err := nifti.ReadFile(atlas.LabelImagePath)
		if err != nil {
			return err
		}
		aligned := labels
		if !labels.SameGrid(volume) {
			if aligned, err = masker.Align(labels, volume); err != nil {
				return err
			}
		}
		if _, err := visualization.NewViewer(aligned).SaveMidSlices(dir, atlas.Name); err != nil {
			return err
		}
	}
	logger.Info("Saved previews", zap.String("dir", dir), zap.Int("atlases", len(atlases)))
	return nil
}
