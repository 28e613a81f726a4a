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
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tcnet-go/tcnet/client"
)

// RootCmd is tcnetprobe's main entry point. Exported so it can be
// extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "tcnetprobe",
	Short: "Swiss Army Knife for TCNet",
}

var (
	rootVerboseFlag        bool
	rootConfigFlag         string
	rootIfaceFlag          string
	rootNodeNameFlag       string
	rootOptInIntervalFlag  time.Duration
	rootRequestTimeoutFlag time.Duration
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
	RootCmd.PersistentFlags().StringVarP(&rootConfigFlag, "config", "c", "", "path to a yaml config file")
	RootCmd.PersistentFlags().StringVar(&rootIfaceFlag, "iface", "eth0", "network interface to broadcast on")
	RootCmd.PersistentFlags().StringVar(&rootNodeNameFlag, "node-name", "tcnet-go", "node name to advertise")
	RootCmd.PersistentFlags().DurationVar(&rootOptInIntervalFlag, "opt-in-interval", time.Second, "how often to announce OptIn")
	RootCmd.PersistentFlags().DurationVar(&rootRequestTimeoutFlag, "request-timeout", 2*time.Second, "per-request deadline")
}

// ConfigureVerbosity sets the log level from the parsed --verbose flag.
// Every subcommand calls this before doing real work.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// loadConfig builds a client.Config from the persistent flags, following
// the same CLI-override-with-warning pattern as the rest of the fleet.
func loadConfig(cmd *cobra.Command) (*client.Config, error) {
	set := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	return client.PrepareConfig(rootConfigFlag, rootIfaceFlag, rootNodeNameFlag, rootOptInIntervalFlag, rootRequestTimeoutFlag, set)
}

// Execute is the main entry point for the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
