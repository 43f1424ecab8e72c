/*
Copyright © 2023 Glossopoeia
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glossopoeia/rexxcore/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	traceOpt string
	settings config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rexxcore",
	Short: "Run REXX programs on a concurrent activity runtime",
	Long: `rexxcore compiles REXX programs, written as free-form .rex source or as
YAML clause listings, and runs them on an activity manager with stems,
condition traps, guarded methods and native routines.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings = config.Default()
		if cfgFile != "" {
			var err error
			if settings, err = config.Load(cfgFile); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("log-level") {
			settings.LogLevel = logLevel
		}
		if cmd.Flags().Changed("trace") {
			settings.Trace = traceOpt
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		level, _ := settings.Level()
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen})
		return nil
	},
}

// An error that only carries the process exit code. Condition errors have
// already been reported by the runtime when this is returned.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file in YAML")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error or disabled")
	rootCmd.PersistentFlags().StringVarP(&traceOpt, "trace", "t", "N", "initial TRACE setting")
}
