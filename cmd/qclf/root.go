package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
	"github.com/ZanzyTHEbar/question-classifier/qclf/config"
	"github.com/ZanzyTHEbar/question-classifier/qclf/metrics"
)

var (
	cfgFile     string
	dumpMetrics bool

	activeCfg *config.Config
	logger    = zerolog.Nop()
	registry  *prometheus.Registry
	collector *metrics.Metrics
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           internal.DefaultAppName,
		Short:         "Word-aligned BERT + LSTM question classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			activeCfg = loaded
			logger = internal.GetLoggerWithLevel(loaded.Log.Level)
			registry = prometheus.NewRegistry()
			collector = metrics.New(registry)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !dumpMetrics || registry == nil {
				return nil
			}
			return writeMetrics(cmd.ErrOrStderr(), registry)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	cmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "Print collected metrics to stderr on exit")

	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newPredictCmd())

	return cmd
}

func requireConfig() (*config.Config, error) {
	if activeCfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// writeMetrics prints every gathered family in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
