package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orgchart/internal/config"
	"orgchart/internal/instrument"
	"orgchart/internal/logging"
	"orgchart/internal/metadata"
	"orgchart/internal/metrics"
	"orgchart/internal/records"
	"orgchart/internal/remote"
)

var (
	cfgFile string

	cfg    *config.Config
	reg    *metadata.Registry
	rs     *records.Store
	client *remote.Client

	promReg *prometheus.Registry
	cm      *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "orgctl",
	Short: "Inspect and edit the company graph through the orgchart API",
	Long: `orgctl loads companies, departments and users from the orgchart API into a
local record store and runs cascading saves and deletes against it.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: dumpMetrics,
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log)

	reg = metadata.NewDefaultRegistry()
	if cfg.SchemaPath != "" {
		if err := metadata.LoadFile(cfg.SchemaPath, reg); err != nil {
			return err
		}
	}
	rs = records.NewStore(reg)
	client = remote.New(cfg.Client, rs)

	promReg = prometheus.NewRegistry()
	cm = metrics.New(promReg)
	cmd.SetContext(instrument.WithInstrumenter(cmd.Context(), instrument.NewLogInstrumenter(log.Logger)))

	log.Debug().Str("base_url", cfg.Client.BaseURL).Msg("client ready")
	return nil
}

// dumpMetrics logs the cascade counters of this run at debug level.
func dumpMetrics(cmd *cobra.Command, args []string) error {
	counters, err := metrics.Counters(promReg)
	if err != nil {
		return err
	}
	for series, v := range counters {
		log.Debug().Str("series", series).Float64("value", v).Msg("metric")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches app.yaml)")
	rootCmd.AddCommand(showCmd, saveCmd, deleteCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
