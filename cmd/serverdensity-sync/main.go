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

// Entry point to the ServerDensity synchronization tool.
//
// The tool reads an Ansible-style YAML inventory, gathers facts about the
// hosts selected by the host pattern and makes ServerDensity match the
// inventory: every host becomes a device, services declared in host
// variables become service checks and alerts declared for hosts, services
// and their groups become alert configs. Existing objects are updated only
// when asked for and alert configs not declared anywhere can be removed.
//
// Exit codes:
//
//	0 everything is synchronized (or no host matched the pattern)
//	1 generic error, including failed API calls
//	2 facts gathering failed on some host
//	3 some host is unreachable
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RedHatInsights/serverdensity-sync/conf"
	"github.com/RedHatInsights/serverdensity-sync/reconciler"
	"github.com/RedHatInsights/serverdensity-sync/types"
)

// Configuration-related constants
const (
	loadConfigurationMessage = "Load configuration"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute parses command line arguments and performs selected operation,
// the exit code of the tool is returned
func execute(args []string) int {
	var cliFlags types.CliFlags
	exitCode := reconciler.ExitStatusOK

	rootCmd := newRootCommand(&cliFlags, func(cmd *cobra.Command) {
		exitCode = doSelectedOperation(cmd, &cliFlags)
	})
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return reconciler.ExitStatusError
	}
	return exitCode
}

func doSelectedOperation(cmd *cobra.Command, cliFlags *types.CliFlags) int {
	if exitCode, done := checkArgs(cmd, cliFlags); done {
		return exitCode
	}

	// config has exactly the same structure as *.toml file
	config, err := conf.LoadConfiguration(conf.ConfigFileEnvVariableName, conf.DefaultConfigFileName)
	if err != nil {
		log.Err(err).Msg(loadConfigurationMessage)
		return reconciler.ExitStatusError
	}

	setupLogging(conf.GetLoggingConfiguration(&config), cliFlags.Verbose)

	// configuration is loaded, so it would be possible to display it if
	// asked by user
	if cliFlags.ShowConfiguration {
		showConfiguration(&config)
		return reconciler.ExitStatusOK
	}

	if cliFlags.Verbose {
		showConfiguration(&config)
	}

	return reconciler.Run(config, *cliFlags)
}
