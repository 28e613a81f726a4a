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
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tcnet-go/tcnet/client"
)

var peersWaitFlag time.Duration

func init() {
	RootCmd.AddCommand(peersCmd)
	peersCmd.Flags().DurationVar(&peersWaitFlag, "wait", 3*time.Second, "how long to listen for OptIn announcements before printing")
}

func peersRun(waitFor time.Duration) error {
	cfg, err := loadConfig(peersCmd)
	if err != nil {
		return err
	}
	c := client.New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if err := c.Connect(context.Background()); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer c.Disconnect()

	if err := c.WaitForPeer(ctx); err != nil {
		log.Warnf("no peers heard from after %v", waitFor)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"node id", "name", "type", "vendor", "app", "address", "uptime"})
	for _, p := range c.Peers() {
		table.Append([]string{
			fmt.Sprintf("%d", p.NodeID),
			p.NodeName,
			p.NodeType.String(),
			p.VendorName,
			p.AppName,
			p.Addr().String(),
			fmt.Sprintf("%ds", p.Uptime),
		})
	}
	table.Render()
	return nil
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Discover and list TCNet peers on the broadcast segment",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := peersRun(peersWaitFlag); err != nil {
			log.Fatal(err)
		}
	},
}
