/*
Copyright 2025 Syncwatch Authors.

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
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/syncwatch/syncwatch"
	"github.com/syncwatch/syncwatch/config"
	"github.com/syncwatch/syncwatch/database"
	"github.com/syncwatch/syncwatch/internal/notification"
)

// Syncwatch represents the CLI application, encapsulating the root Cobra
// command.
type Syncwatch struct {
	cmd *cobra.Command
}

// syncwatchInstance holds the engine instance and its configuration for use
// by the subcommands.
type syncwatchInstance struct {
	syncwatch *syncwatch.Syncwatch
	cnf       *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the
// error before exiting.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and initializes the engine before any command
// runs.
func preRun(app *syncwatchInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("syncwatch.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newEngine, err := setupSyncwatch(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.syncwatch = newEngine
		app.cnf = cnf

		return nil
	}
}

// setupSyncwatch connects the datasource and builds the engine from the
// provided configuration.
func setupSyncwatch(cfg *config.Configuration) (*syncwatch.Syncwatch, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newEngine, err := syncwatch.NewSyncwatch(db)
	if err != nil {
		return nil, fmt.Errorf("error creating syncwatch: %v", err)
	}
	return newEngine, nil
}

// NewCLI creates the command-line interface for the Syncwatch application.
// It sets up the root command and the server, worker and migration
// subcommands.
func NewCLI() *Syncwatch {
	var configFile string
	b := &syncwatchInstance{}

	var rootCmd = &cobra.Command{
		Use:   "syncwatch",
		Short: "Cross-system synchronization tracker",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./syncwatch.json", "Configuration file for syncwatch")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Syncwatch{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w Syncwatch) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
