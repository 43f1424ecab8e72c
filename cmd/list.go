/*
Copyright © 2023 Glossopoeia
*/
package cmd

import (
	"github.com/glossopoeia/rexxcore/compiler"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list PROGRAM",
	Short: "Compile a program and print its instructions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := compiler.LoadFile(args[0])
		if err != nil {
			return err
		}
		code.Disassemble(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
