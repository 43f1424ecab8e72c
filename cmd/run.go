/*
Copyright © 2023 Glossopoeia
*/
package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/glossopoeia/rexxcore/compiler"
	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/runtime"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var searchPath []string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run PROGRAM [ARGS...]",
	Short: "Compile and run a program",
	Long: `Compile a program file and run it. The remaining arguments are joined with
blanks into the program's single argument string, as ARG and PARSE ARG see it.
External routines and REQUIRES packages are looked up next to the program and
in every --path directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := compiler.LoadFile(args[0])
		if err != nil {
			return err
		}
		dirs := append([]string{filepath.Dir(args[0])}, settings.Path...)
		loader, err := compiler.NewDirLoader(append(dirs, searchPath...)...)
		if err != nil {
			return err
		}
		input, closeInput := newInputReader(cmd.InOrStdin())
		defer closeInput()

		opts := runtime.DefaultOptions()
		if err := settings.Apply(&opts); err != nil {
			return err
		}
		opts.Streams = runtime.Streams{
			Output: cmd.OutOrStdout(),
			Error:  cmd.ErrOrStderr(),
			Input:  input,
			Queue:  runtime.NewDataQueue(),
		}
		opts.Translator = compiler.Translator{}
		opts.Loader = loader
		m := runtime.NewActivityManager(opts)
		defer m.Shutdown()
		m.RegisterCommand("SYSTEM", shellCommand(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))

		interrupt, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		finished := make(chan struct{})
		defer close(finished)
		go func() {
			select {
			case <-interrupt.Done():
				m.HaltAll("interrupted")
			case <-finished:
			}
		}()

		result, err := m.RunProgram(context.Background(), code, programArgs(args[1:]))
		m.Wait()
		var condErr *runtime.ConditionError
		if err != nil && !errors.As(err, &condErr) {
			return err
		}
		if n := runtime.ExitCode(result, err); n != 0 {
			return exitCode(n)
		}
		return nil
	},
}

func programArgs(words []string) []object.Value {
	if len(words) == 0 {
		return nil
	}
	return []object.Value{object.String(strings.Join(words, " "))}
}

// Run commands addressed to SYSTEM through the shell. A command that could
// not be started is a failure.
func shellCommand(in io.Reader, out io.Writer, errOut io.Writer) runtime.CommandHandler {
	return func(act *runtime.Activation, command string) (int, error) {
		c := exec.Command("sh", "-c", command)
		c.Stdin, c.Stdout, c.Stderr = in, out, errOut
		err := c.Run()
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			return exitErr.ExitCode(), nil
		case err != nil:
			log.Debug().Err(err).Str("command", command).Msg("command could not start")
			return -1, nil
		}
		return 0, nil
	}
}

func addSearchFlags(flags *pflag.FlagSet) {
	flags.StringSliceVarP(&searchPath, "path", "p", nil, "extra directories searched for routines")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSearchFlags(runCmd.Flags())
}
