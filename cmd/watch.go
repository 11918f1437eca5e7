package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/tc420/internal/config"
	"github.com/smazurov/tc420/internal/logging"
	"github.com/smazurov/tc420/internal/program"
	"github.com/smazurov/tc420/internal/sequencer"
	"github.com/spf13/cobra"
)

// ProgramUploader is the part of the sequencer a program watch needs.
type ProgramUploader interface {
	UploadProgram(ctx context.Context, steps []program.LightingStep) error
}

// WatchProgram uploads the program at path and again every time the file
// changes, until Stop is called on the returned watcher. A failed initial
// upload is logged; the watch keeps running so fixing the file or plugging
// in the controller recovers it.
func WatchProgram(ctx context.Context, path string, seq ProgramUploader, sortSteps bool, debounce time.Duration) (*config.Watcher[program.Program], error) {
	logger := logging.GetLogger("watch")

	upload := func(p program.Program) {
		if sortSteps {
			p = p.Sorted()
		}
		logger.Info("Uploading program", "name", p.Name, "steps", len(p.Steps))
		if err := seq.UploadProgram(ctx, p.Steps); err != nil {
			logger.Error("Program upload failed", "error", err, "kind", string(sequencer.KindOf(err)))
			return
		}
		logger.Info("Program uploaded", "name", p.Name)
	}

	watcher := config.NewWatcher(path, program.LoadFile, logger,
		config.WithDebounce[program.Program](debounce),
		config.WithErrorHandler[program.Program](func(err error) {
			logger.Warn("Ignoring unreadable program file", "error", err)
		}),
	)
	watcher.OnReload(upload)

	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	if p, err := program.LoadFile(path); err != nil {
		logger.Warn("Initial program load failed", "error", err)
	} else {
		upload(p)
	}
	return watcher, nil
}

// CreateWatchCmd creates the watch command.
func CreateWatchCmd(newDevice DeviceFactory) *cobra.Command {
	var sortSteps bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <program.toml>",
		Short: "Upload a program and re-upload it whenever the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := newDevice()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher, err := WatchProgram(ctx, args[0], dev.Sequencer, sortSteps, debounce)
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Stop() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, press Ctrl+C to stop\n", watcher.Path())
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&sortSteps, "sort", false, "Order steps by time of day before uploading")
	cmd.Flags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "Quiet period after a change before uploading")

	return cmd
}
