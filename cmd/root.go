// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/googlecloudplatform/volexec/cfg"
	"github.com/googlecloudplatform/volexec/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the volexec command. run is called with the resolved
// and validated config; tests pass a stub to capture it.
func NewRootCmd(run func(*cfg.Config) error) (*cobra.Command, error) {
	var (
		configObj cfg.Config
		cfgFile   string
		v         = viper.New()
	)
	rootCmd := &cobra.Command{
		Use:   "volexec [flags]",
		Short: "Drive a scripted viewer session against an in-memory scene",
		Long: `volexec exercises the command layer of a 3D volume viewer: interactive
attribute edits are coalesced by background adjusters, mesh smoothing runs on
a parallel batch runner and volume edits run on a serial task queue. The
session reports how many updates were coalesced and how every task ended.`,
		Version:      common.GetVersion(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(v, cfgFile, &configObj); err != nil {
				return err
			}
			return run(&configObj)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "The path to the config file where all volexec related config needs to be specified.")
	if err := cfg.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		return nil, fmt.Errorf("error while declaring/binding flags: %w", err)
	}
	return rootCmd, nil
}

// resolveConfig merges the config file, if any, under the flags bound to v,
// then rationalizes and validates the result into c.
func resolveConfig(v *viper.Viper, cfgFile string, c *cfg.Config) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	err := v.Unmarshal(c, viper.DecodeHook(cfg.DecodeHook()), func(decoderConfig *mapstructure.DecoderConfig) {
		// By default, viper supports mapstructure tags for unmarshalling. Override that to support yaml tag.
		decoderConfig.TagName = "yaml"
		// Reject unknown keys in the config file.
		decoderConfig.ErrorUnused = true
	})
	if err != nil {
		return fmt.Errorf("error while unmarshalling the config: %w", err)
	}

	if err = cfg.Rationalize(v, c); err != nil {
		return err
	}
	if err = cfg.ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Execute runs the volexec command and exits with a non-zero status on
// failure.
func Execute() {
	rootCmd, err := NewRootCmd(Run)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build root command: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
