// Copyright (c) 2024 The Cwerg-Go Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwerg-go/cwerg/internal/asmunit"
	"github.com/cwerg-go/cwerg/internal/util"
)

func archByName(name string) (asmunit.Arch, error) {
	switch name {
	case "x64":
		return asmunit.X64{}, nil
	case "arm64", "a64":
		return asmunit.Arm64{}, nil
	case "arm32", "a32":
		return asmunit.Arm32{}, nil
	default:
		return nil, fmt.Errorf("unknown target ISA %q (want x64, arm64 or arm32)", name)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func main() {
	var archName string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "cwerg",
		Short: "cwerg backend assembler — symbolic assembly in, ELF executable out",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg = zap.NewDevelopmentConfig()
			}
			logger, err := cfg.Build()
			if err == nil {
				util.SetLogger(logger)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&archName, "arch", "x64", "target ISA: x64, arm64 or arm32")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	lintCmd := &cobra.Command{
		Use:   "lint <input>",
		Short: "Parse and validate an assembly stream without emitting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := archByName(archName)
			if err != nil {
				return err
			}
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			src, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			if err := asmunit.Lint(arch, string(src)); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			util.Log.Infow("lint ok", "input", args[0], "arch", arch.Name())
			return nil
		},
	}

	assembleCmd := &cobra.Command{
		Use:   "assemble <input> <output>",
		Short: "Assemble a symbolic stream into an ELF executable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := archByName(archName)
			if err != nil {
				return err
			}
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			data, err := asmunit.Assemble(arch, in)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			util.Log.Infow("assembled", "input", args[0], "arch", arch.Name(), "bytes", len(data))

			if args[1] == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			return os.WriteFile(args[1], data, 0755)
		},
	}

	rootCmd.AddCommand(lintCmd, assembleCmd)
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cwerg:", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
