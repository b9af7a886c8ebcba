package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyc-housing-linkage/internal/config"
	"github.com/nyc-housing-linkage/internal/store"
	"github.com/nyc-housing-linkage/internal/web"
)

var (
	dataDir    string
	reportsDir string
	localDebug bool
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Printf("warning: failed to load .env: %v", err)
	}

	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "NYC Housing Construction Linkage Pipeline",
		Long:  `Links HPD affordable housing buildings to DOB permit and certificate of occupancy records across NYC Open Data, producing per-building construction timelines`,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", config.GetEnv("DATA_DIR", "data"), "Directory for CSV snapshots")
	rootCmd.PersistentFlags().StringVar(&reportsDir, "reports-dir", config.GetEnv("REPORTS_DIR", "reports"), "Directory for data quality reports")
	rootCmd.PersistentFlags().BoolVar(&localDebug, "debug", config.GetEnvBool("DEBUG", false), "Enable debug output")

	rootCmd.AddCommand(createFetchCmd())
	rootCmd.AddCommand(createClassifyCmd())
	rootCmd.AddCommand(createMatchCmd())
	rootCmd.AddCommand(createCOCmd())
	rootCmd.AddCommand(createTimelineCmd())
	rootCmd.AddCommand(createReportCmd())
	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// createFetchCmd creates the HPD snapshot download command
func createFetchCmd() *cobra.Command {
	var force bool
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the HPD affordable housing building snapshot",
		Long:  `Downloads the HPD affordable housing building and project datasets, enriches blank building dates from project dates, and saves the raw snapshot. A snapshot younger than --max-age is reused unless --force is set`,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			if err := p.fetchStep(context.Background(), force, maxAge); err != nil {
				log.Fatalf("Fetch failed: %v", err)
			}
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Refetch even if the snapshot is fresh")
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Snapshot age before a refetch")

	return cmd
}

// createClassifyCmd creates the financing classification command
func createClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Classify building financing from capital funding awards",
		Long:  `Labels every building HPD Financed or Privately Financed by looking its project up in the Local Law 44 capital funding awards dataset. Buildings with no project ID are labeled Unknown`,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			if err := p.classifyStep(context.Background()); err != nil {
				log.Fatalf("Classification failed: %v", err)
			}
		},
	}
}

// createMatchCmd creates the permit matching command
func createMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match",
		Short: "Match buildings to DOB new building permit filings",
		Long:  `Runs the matching cascade (BIN, then parcel, then condo-related parcels, then address) against the legacy DOB and DOB NOW filing datasets, reduces results to initial documents, and saves the permit and provenance snapshots. Results are audited to PostgreSQL when PGDATABASE is set`,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			p.tracker.StartProcessing()
			if err := p.matchStep(context.Background()); err != nil {
				log.Fatalf("Matching failed: %v", err)
			}
			if err := p.reportStep(reportsDir); err != nil {
				log.Printf("warning: failed to save quality report: %v", err)
			}
		},
	}
}

// createCOCmd creates the certificate of occupancy lookup command
func createCOCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "co",
		Short: "Look up certificates of occupancy by BIN",
		Long:  `Queries the legacy and DOB NOW certificate of occupancy datasets for every usable BIN in the building and permit snapshots and saves the occupancy snapshot`,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			if err := p.coStep(context.Background()); err != nil {
				log.Fatalf("Certificate lookup failed: %v", err)
			}
		},
	}
}

// createTimelineCmd creates the timeline assembly command
func createTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Assemble per-building construction timelines",
		Long:  `Joins the building, permit, and certificate snapshots into chronological per-building event timelines, split into HPD financed and privately financed outputs. Runs without the certificate snapshot if it is missing`,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			if err := p.timelineStep(); err != nil {
				log.Fatalf("Timeline assembly failed: %v", err)
			}
		},
	}
}

// createReportCmd creates the data quality report command
func createReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Generate a data quality report from the current snapshots",
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			p.tracker.StartProcessing()
			if err := p.reportStep(reportsDir); err != nil {
				log.Fatalf("Report generation failed: %v", err)
			}
		},
	}
}

// createRunCmd creates the end-to-end pipeline command
func createRunCmd() *cobra.Command {
	var force bool
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline end to end",
		Long:  `Runs fetch, classify, match, co, and timeline in order with per-step timing, then writes the data quality report for the run`,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPipeline(dataDir, localDebug)
			if err := p.runAll(context.Background(), force, maxAge, reportsDir); err != nil {
				log.Fatalf("Pipeline failed: %v", err)
			}
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Refetch even if the building snapshot is fresh")
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Building snapshot age before a refetch")

	return cmd
}

// createServeCmd creates the results web server command
func createServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pipeline outputs over HTTP",
		Long:  `Serves the latest data quality report, the match provenance CSV, and the financing timelines`,
		Run: func(cmd *cobra.Command, args []string) {
			server := web.NewServer(addr, store.New(dataDir), reportsDir)
			if err := server.Start(); err != nil {
				log.Fatalf("Server failed: %v", err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.GetEnv("WEB_ADDR", ":8080"), "Listen address")

	return cmd
}
