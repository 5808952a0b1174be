/*
Copyright © 2021, 2022, 2023 Red Hat, Inc.

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

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/reconciler"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

const (
	versionMessage = "ServerDensity synchronization tool version 1.0"
	authorsMessage = "ServerDensity sync maintainers, Red Hat Inc."
)

// newRootCommand defines all command line options. The run callback is
// called once flags and arguments are parsed.
func newRootCommand(cliFlags *types.CliFlags, run func(cmd *cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serverdensity-sync <host-pattern>",
		Short: "Synchronizes inventory hosts, services and alerts into ServerDensity",
		Long: "Gathers facts about inventory hosts selected by the host pattern and makes " +
			"ServerDensity devices, services and alert configs match declarations found " +
			"in the inventory.",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cliFlags.HostPattern = args[0]
			}
			run(cmd)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cliFlags.APIToken, "api-token", "A", "", "API token for your ServerDensity account")
	flags.StringVarP(&cliFlags.InventoryPath, "inventory", "i", "", "path to the YAML inventory")
	flags.StringVarP(&cliFlags.Limit, "limit", "l", "", "further limit selected hosts with an additional pattern")
	flags.StringVar(&cliFlags.FactsDir, "facts-dir", "", "directory with cached facts of inventory hosts")
	flags.StringVar(&cliFlags.CacheFile, "cache", "", "file used to cache remote state between runs")
	flags.StringVar(&cliFlags.AgentKeysFile, "agent-keys-file", "", "file the agent keys of devices are written to")
	flags.BoolVar(&cliFlags.ForceUpdate, "force", false, "update objects that already exist in ServerDensity")
	flags.BoolVar(&cliFlags.Cleanup, "cleanup", false, "delete alerts that are not declared in inventory")
	flags.BoolVar(&cliFlags.ReadOnly, "readonly", false, "just download remote state into a temporary cache file")
	flags.BoolVar(&cliFlags.ShowVersion, "show-version", false, "show version and exit")
	flags.BoolVar(&cliFlags.ShowAuthors, "show-authors", false, "show authors and exit")
	flags.BoolVar(&cliFlags.ShowConfiguration, "show-configuration", false, "show configuration and exit")
	flags.BoolVarP(&cliFlags.Verbose, "verbose", "v", false, "verbose logs")

	return cmd
}

// showVersion function displays version information.
func showVersion() {
	fmt.Println(versionMessage)
}

// showAuthors function displays information about authors.
func showAuthors() {
	fmt.Println(authorsMessage)
}

// showConfiguration function displays actual configuration.
func showConfiguration(config *conf.ConfigStruct) {
	serverDensityConfig := conf.GetServerDensityConfiguration(config)
	log.Info().
		Str("URL", serverDensityConfig.URL).
		Bool("Token set", serverDensityConfig.APIToken != ""). // token is omitted on purpose
		Str("Timeout", serverDensityConfig.Timeout.String()).
		Msg("ServerDensity configuration")

	syncConfig := conf.GetSyncConfiguration(config)
	log.Info().
		Bool("Force", syncConfig.Force).
		Bool("Cleanup", syncConfig.Cleanup).
		Bool("Read only", syncConfig.ReadOnly).
		Msg("Synchronization configuration")

	inventoryConfig := conf.GetInventoryConfiguration(config)
	log.Info().
		Str("Path", inventoryConfig.Path).
		Str("Facts dir", inventoryConfig.FactsDir).
		Str("Notifications file", inventoryConfig.NotificationsFile).
		Str("Agent keys file", inventoryConfig.AgentKeysFile).
		Msg("Inventory configuration")

	cacheConfig := conf.GetCacheConfiguration(config)
	log.Info().
		Str("Backend", cacheConfig.Backend).
		Str("Path", cacheConfig.Path).
		Str("Table", cacheConfig.Table).
		Msg("Cache configuration")

	storageConfig := conf.GetStorageConfiguration(config)
	log.Info().
		Str("Driver", storageConfig.Driver).
		Str("DB Name", storageConfig.PGDBName).
		Str("Username", storageConfig.PGUsername). // password is omitted on purpose
		Str("Host", storageConfig.PGHost).
		Int("Port", storageConfig.PGPort).
		Bool("LogSQLQueries", storageConfig.LogSQLQueries).
		Str("Parameters", storageConfig.PGParams).
		Msg("Storage configuration")

	brokerConfig := conf.GetKafkaBrokerConfiguration(config)
	log.Info().
		Bool("Enabled", brokerConfig.Enabled).
		Str("Address", brokerConfig.Addresses).
		Str("SecurityProtocol", brokerConfig.SecurityProtocol).
		Str("SaslMechanism", brokerConfig.SaslMechanism).
		Str("Topic", brokerConfig.Topic).
		Str("Timeout", brokerConfig.Timeout.String()).
		Msg("Broker configuration")

	loggingConfig := conf.GetLoggingConfiguration(config)
	log.Info().
		Str("Level", loggingConfig.LogLevel).
		Bool("Pretty colored debug logging", loggingConfig.Debug).
		Msg("Logging configuration")

	// Authentication token is omitted on purpose
	metricsConfig := conf.GetMetricsConfiguration(config)
	log.Info().
		Str("Namespace", metricsConfig.Namespace).
		Str("Subsystem", metricsConfig.Subsystem).
		Str("Job", metricsConfig.Job).
		Str("Push Gateway", metricsConfig.GatewayURL).
		Msg("Metrics configuration")
}

// checkArgs function handles command line options that do not need
// configuration. The second return value is true when the tool should exit
// with the returned code.
func checkArgs(cmd *cobra.Command, args *types.CliFlags) (int, bool) {
	switch {
	case args.ShowVersion:
		showVersion()
		return reconciler.ExitStatusOK, true
	case args.ShowAuthors:
		showAuthors()
		return reconciler.ExitStatusOK, true
	case args.ShowConfiguration:
		// config not loaded yet
		return reconciler.ExitStatusOK, false
	default:
	}

	if args.HostPattern == "" {
		_ = cmd.Help()
		return reconciler.ExitStatusError, true
	}
	return reconciler.ExitStatusOK, false
}

// setupLogging configures global logger
func setupLogging(config conf.LoggingConfiguration, verbose bool) {
	if config.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logLevel := convertLogLevel(config.LogLevel)
	if verbose {
		logLevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	log.Debug().
		Str("configured", config.LogLevel).
		Int("internal", int(logLevel)).
		Msg("Log level")
}

func convertLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	}

	return zerolog.InfoLevel
}
