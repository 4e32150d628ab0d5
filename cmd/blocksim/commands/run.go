// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package commands

import (
	"net/http"
	"os"

	log "github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/westerndigitalcorporation/blocksim/internal/metrics"
	"github.com/westerndigitalcorporation/blocksim/internal/protocol"
)

var metricsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Read a session from stdin and drive it to completion on stdout",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metricsAddr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) instead of disabling observability")
	viper.BindPFlag("metricsAddr", runCmd.Flags().Lookup("metricsAddr"))
}

func runRun(cmd *cobra.Command, args []string) error {
	addr := viper.GetString("metricsAddr")

	var met *metrics.Metrics
	if addr != "" {
		reg := prometheus.NewRegistry()
		met = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Infof("blocksim: serving metrics on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Errorf("blocksim: metrics server exited: %v", err)
			}
		}()
	}

	driver := protocol.NewWithMetrics(os.Stdin, os.Stdout, met)
	return driver.Run()
}
