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

package client

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// DefaultBroadcastPort is TCNet's documented broadcast discovery port.
const DefaultBroadcastPort = 60000

// Config specifies how a Client announces itself and discovers peers.
type Config struct {
	// BroadcastInterface is the local NIC used for broadcast send and for
	// deriving the broadcast address from its IP/netmask.
	BroadcastInterface string `yaml:"broadcast_interface"`
	// BroadcastPort is the well-known discovery port both sides bind to.
	BroadcastPort int `yaml:"broadcast_port"`
	// NodeName is the advertised 8-byte ASCII node name.
	NodeName string `yaml:"node_name"`
	// VendorName and AppName are the advertised 16-byte ASCII identifiers.
	VendorName string `yaml:"vendor_name"`
	AppName    string `yaml:"app_name"`
	// OptInInterval is the period between OptIn announcements.
	OptInInterval time.Duration `yaml:"opt_in_interval"`
	// PeerIdleThreshold is a multiplier on OptInInterval after which a
	// silent peer is evicted.
	PeerIdleThreshold int `yaml:"peer_idle_threshold"`
	// RequestTimeout is the default deadline for RequestData.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// EventBufferSize bounds the event-stream channel; beyond this the
	// oldest undelivered event is dropped rather than blocking receive.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// DefaultConfig returns a Config populated with the spec's documented
// defaults.
func DefaultConfig() *Config {
	return &Config{
		BroadcastInterface: "eth0",
		BroadcastPort:      DefaultBroadcastPort,
		NodeName:           "tcnet-go",
		VendorName:         "tcnet-go",
		AppName:            "tcnet-go",
		OptInInterval:      1000 * time.Millisecond,
		PeerIdleThreshold:  5,
		RequestTimeout:     2000 * time.Millisecond,
		EventBufferSize:    64,
	}
}

// Validate checks that c is sane before it's used to start a Client.
func (c *Config) Validate() error {
	if c.BroadcastInterface == "" {
		return fmt.Errorf("broadcast_interface must be specified")
	}
	if c.BroadcastPort <= 0 {
		return fmt.Errorf("broadcast_port must be positive")
	}
	if c.OptInInterval <= 0 {
		return fmt.Errorf("opt_in_interval must be greater than zero")
	}
	if c.PeerIdleThreshold <= 0 {
		return fmt.Errorf("peer_idle_threshold must be greater than zero")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be greater than zero")
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("event_buffer_size must be greater than zero")
	}
	return nil
}

// PeerIdleTimeout is PeerIdleThreshold applied to OptInInterval.
func (c *Config) PeerIdleTimeout() time.Duration {
	return time.Duration(c.PeerIdleThreshold) * c.OptInInterval
}

// ReadConfig reads a yaml-encoded Config from path, starting from
// DefaultConfig so an on-disk file only needs to override what it cares
// about.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// PrepareConfig layers CLI-flag overrides on top of an on-disk (or
// default) config, logging a warning for each field a flag overrides,
// then validates the result.
func PrepareConfig(cfgPath, iface, nodeName string, optInInterval, requestTimeout time.Duration, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["iface"] {
		warn("broadcast_interface")
		cfg.BroadcastInterface = iface
	}
	if setFlags["node-name"] {
		warn("node_name")
		cfg.NodeName = nodeName
	}
	if setFlags["opt-in-interval"] {
		warn("opt_in_interval")
		cfg.OptInInterval = optInInterval
	}
	if setFlags["request-timeout"] {
		warn("request_timeout")
		cfg.RequestTimeout = requestTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
