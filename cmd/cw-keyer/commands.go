package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sweeney/cw-keyer/internal/config"
	"github.com/sweeney/cw-keyer/internal/gpio"
	"github.com/sweeney/cw-keyer/internal/nvram"
	"github.com/sweeney/cw-keyer/internal/wpm"
)

func newStateCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print every input line once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadSettings(cmd, s); err != nil {
				return err
			}
			reader, err := gpio.NewRealReader(s.pins)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer reader.Close()

			sample, err := reader.Read()
			if err != nil {
				return fmt.Errorf("read gpio: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatSample(sample))
			return nil
		},
	}
}

func formatSample(s gpio.Sample) string {
	return fmt.Sprintf("DOT: %s, DASH: %s, MODE: %s, SAVE: %s, ENC_A: %s, ENC_B: %s",
		pressedString(s.Dot), pressedString(s.Dash), pressedString(s.Mode), pressedString(s.Save),
		levelString(s.EncA), levelString(s.EncB))
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func newWPMCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "wpm [N]",
		Short: "Show the saved speed, or save N (5-99)",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSettings(cmd, s); err != nil {
				return err
			}
			cell, err := nvram.OpenSQLite(s.storePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer cell.Close()
			return runWPM(cmd.OutOrStdout(), wpm.NewStore(cell, s.storeAddress), args, s.defaultWPM)
		},
	}
}

func runWPM(out io.Writer, store *wpm.Store, args []string, def int) error {
	if len(args) == 0 {
		if v, ok := store.Load(); ok {
			fmt.Fprintf(out, "%d\n", v)
		} else {
			fmt.Fprintf(out, "unset (default %d)\n", def)
		}
		return nil
	}

	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid speed %q", args[0])
	}
	if err := wpm.Validate(v); err != nil {
		return err
	}
	if err := store.Save(v); err != nil {
		return fmt.Errorf("save speed: %w", err)
	}
	fmt.Fprintf(out, "saved %d\n", v)
	return nil
}

func newConfigCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create the config file if missing and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeDefaultConfig(cmd.OutOrStdout(), s.configPath)
		},
	}
}

func writeDefaultConfig(out io.Writer, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.DefaultTemplate), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	fmt.Fprintln(out, path)
	return nil
}
