package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xlemi/dictation/internal/app"
	"github.com/0xlemi/dictation/internal/audio"
	"github.com/0xlemi/dictation/internal/config"
	"github.com/0xlemi/dictation/internal/hotkey"
	"github.com/0xlemi/dictation/internal/logging"
	"github.com/0xlemi/dictation/internal/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dictation",
	Short: "Push-to-talk dictation",
	Long: `Dictation records from the default microphone while a key combination is
held on any keyboard and hands the recording downstream when it is released.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Dictation %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the keyboards and record while the hotkey is held",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if noUI, _ := cmd.Flags().GetBool("no-ui"); noUI {
			cfg.UI = false
		}
		return runDictation(cfg)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices and whether they can be watched",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return listDevices(cfg)
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List key names accepted in the hotkey setting",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(strings.Join(hotkey.KeyNames(), " "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(keysCmd)

	runCmd.Flags().Bool("no-ui", false, "Log to the terminal instead of showing the recording indicator")

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runDictation(cfg *config.Config) error {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.UI {
		logger, err = logging.Quiet(cfg.LogLevel, cfg.LogFile)
	} else {
		logger, err = logging.New(cfg.LogLevel, cfg.LogFile)
	}
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	codes, err := hotkey.ParseKeys(cfg.Hotkey)
	if err != nil {
		return err
	}

	d := app.New(
		audio.NewPortAudio(cfg.FramesPerBuffer),
		hotkey.NewSource(cfg.InputDir),
		app.LogConsumer{Logger: logger.Named("consumer")},
		app.Options{
			Hotkey:        codes,
			ChunkSeconds:  cfg.ChunkSeconds,
			PartialQueue:  cfg.PartialQueue,
			MeterInterval: cfg.MeterInterval,
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.UI {
		fmt.Fprintf(os.Stderr, "Hold %s to dictate, Ctrl+C to quit\n", hotkey.Combo(codes))
		return d.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.NewModel(), tea.WithAltScreen())
	relay := ui.NewRelay(64)
	d.SetNotifier(relay.Send)
	go relay.Run(ctx, p.Send)

	done := make(chan error, 1)
	go func() {
		err := d.Run(ctx)
		p.Quit()
		done <- err
	}()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	err = errors.Join(<-done, uiErr)
	if n := relay.Dropped(); n > 0 {
		logger.Debug("ui messages dropped", zap.Int64("count", n))
	}
	return err
}

func listDevices(cfg *config.Config) error {
	infos, err := hotkey.ListDevices(hotkey.NewSource(cfg.InputDir), nil)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Printf("No input devices found in %s\n", cfg.InputDir)
		return nil
	}

	denied := 0
	rows := make([][]string, 0, len(infos))
	for _, p := range infos {
		status := "ok"
		switch {
		case p.PermissionDenied():
			denied++
			status = "permission denied"
		case p.Err != nil:
			status = p.Err.Error()
		}
		keyboard := "no"
		if p.Keyboard {
			keyboard = "yes"
		}
		rows = append(rows, []string{p.Path, p.Name, keyboard, status})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PATH", "NAME", "KEYBOARD", "STATUS").
		Rows(rows...)
	fmt.Println(t)

	if denied > 0 {
		fmt.Printf("\n%d device(s) refused access; add your user to the input group and log in again.\n", denied)
	}
	return nil
}
