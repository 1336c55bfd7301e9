package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/notification"
	"github.com/burstlab/s1-cslc-poc/internal/properties"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
	"github.com/burstlab/s1-cslc-poc/internal/workflow"
	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var runConfigPath string

func banner() {
	figure.NewFigure("S1 CSLC", "", true).Print()
	color.Cyan("Sentinel-1 coregistered SLC processor\n\n")
}

func newEngine(cfg *runconfig.RunConfig) engine.Engine {
	return engine.NewExec(properties.EngineBin(), engine.GPU{
		Enabled: cfg.Groups.Worker.GPUEnabled,
		ID:      cfg.Groups.Worker.GPUID,
	})
}

// radar-domain stages share the same load + run + report envelope.
func runRadarStage(name string, run func(context.Context, engine.Engine, *runconfig.RunConfig, *workflow.Summary) error) error {
	cfg, err := runconfig.Load(runConfigPath, name)
	if err != nil {
		return report(name, err)
	}
	summary := workflow.NewSummary()
	err = run(context.Background(), newEngine(cfg), cfg, summary)
	if err == nil {
		err = summary.Write(filepath.Join(cfg.ProductPath(), "run_summary.csv"))
	}
	return report(name, err)
}

func runGeoStage(name string, run func(context.Context, engine.Engine, *runconfig.GeoRunConfig, *workflow.Summary) error) error {
	ctx := context.Background()
	var eng engine.Engine
	gcfg, err := runconfig.LoadGeo(ctx, runConfigPath, name,
		func(cfg *runconfig.RunConfig) geogrid.BoundsFunc {
			eng = newEngine(cfg)
			return eng.GroundBounds
		})
	if err != nil {
		return report(name, err)
	}
	summary := workflow.NewSummary()
	err = run(ctx, eng, gcfg, summary)
	if err == nil {
		err = summary.Write(filepath.Join(gcfg.ProductPath(), "run_summary.csv"))
	}
	return report(name, err)
}

func report(name string, err error) error {
	if err != nil {
		color.Red("%s failed: %v", name, err)
		notification.SendDiscordErrorNotification(fmt.Sprintf("%s failed: %v", name, err))
		return err
	}
	color.Green("%s finished", name)
	notification.SendDiscordSuccessNotification(fmt.Sprintf("%s finished", name))
	return nil
}

func stageCommand(use, short, workflowName string,
	run func(context.Context, engine.Engine, *runconfig.RunConfig, *workflow.Summary) error) *cobra.Command {

	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRadarStage(workflowName, run)
		},
	}
}

func main() {
	godotenv.Load()
	godal.RegisterAll()

	rootCmd := &cobra.Command{
		Use:   "s1cslc",
		Short: "Sentinel-1 burst coregistration and geocoding pipeline",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			banner()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&runConfigPath, "run-config-path", "",
		"path to the YAML run configuration")
	rootCmd.MarkPersistentFlagRequired("run-config-path")

	rootCmd.AddCommand(
		stageCommand("s1-cslc", "Run topography or coregistration depending on the reference flag",
			"s1_cslc", workflow.RunCSLC),
		stageCommand("rdr2geo", "Compute reference burst topography", "s1_rdr2geo", workflow.RunRdr2Geo),
		stageCommand("geo2rdr", "Compute secondary burst coregistration offsets", "s1_geo2rdr", workflow.RunGeo2Rdr),
		stageCommand("resample", "Resample secondary bursts onto the reference grid", "s1_resample", workflow.RunResample),
		&cobra.Command{
			Use:   "geocode-slc",
			Short: "Geocode burst SLCs and assemble products",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGeoStage("s1_geocode_slc", workflow.RunGeocodeSLC)
			},
		},
		&cobra.Command{
			Use:   "geocode-metadata",
			Short: "Geocode topography layers for reference bursts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runGeoStage("s1_geocode_metadata", workflow.RunGeocodeMetadata)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
