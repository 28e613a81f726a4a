/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tcnet-go/tcnet/client"
)

var (
	watchLayersFlag  []int
	watchPollFlag    time.Duration
	watchMetricsPort int
)

func init() {
	RootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntSliceVar(&watchLayersFlag, "layers", []int{1, 2, 3, 4}, "layers to poll")
	watchCmd.Flags().DurationVar(&watchPollFlag, "poll", 2*time.Second, "how often to re-poll each layer")
	watchCmd.Flags().IntVar(&watchMetricsPort, "metrics-port", 0, "port to serve Prometheus metrics on; 0 disables")
}

func watchOnce(ctx context.Context, c *client.Client, layers []uint8) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"layer", "artist", "title", "bpm", "position(ms)", "state"})
	for _, layer := range layers {
		info, err := c.TrackInfo(ctx, layer)
		if err != nil {
			table.Append([]string{fmt.Sprintf("%d", layer), "-", "-", "-", "-", err.Error()})
			continue
		}
		metrics, err := c.LayerMetrics(ctx, layer)
		if err != nil {
			table.Append([]string{fmt.Sprintf("%d", layer), info.TrackArtist, info.TrackTitle, "-", "-", err.Error()})
			continue
		}
		table.Append([]string{
			fmt.Sprintf("%d", layer),
			info.TrackArtist,
			info.TrackTitle,
			fmt.Sprintf("%.2f", float64(metrics.BPM)/100),
			fmt.Sprintf("%d", metrics.Position),
			fmt.Sprintf("%d", metrics.State),
		})
	}
	table.Render()
}

func watchRun(rawLayers []int) error {
	layers := make([]uint8, len(rawLayers))
	for i, l := range rawLayers {
		layers[i] = uint8(l)
	}
	cfg, err := loadConfig(watchCmd)
	if err != nil {
		return err
	}
	c := client.New(cfg)
	if err := c.Connect(context.Background()); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer c.Disconnect()

	if watchMetricsPort != 0 {
		go func() {
			if err := c.Metrics().Serve(watchMetricsPort); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WaitForPeer(waitCtx); err != nil {
		log.Warnf("no peers heard from yet, polling anyway")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(watchPollFlag)
	defer ticker.Stop()
	for {
		watchOnce(context.Background(), c, layers)
		select {
		case <-ticker.C:
		case <-sigCh:
			return nil
		}
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll each layer's track metadata and metrics and print a live table",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := watchRun(watchLayersFlag); err != nil {
			log.Fatal(err)
		}
	},
}
