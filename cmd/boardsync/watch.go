package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"whiteboard/api/internal/canvas"
	"whiteboard/api/internal/editor"
	"whiteboard/api/internal/persist"
)

var (
	watchFile   string
	watchWindow time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Keep a local snapshot file saved to a whiteboard",
	Long: `Writes the whiteboard's stored snapshot to --file, then saves the file
back to the server whenever it has been quiet for --window after a change.
Only the owner's edits are saved; anyone else gets a read-only view.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if watchFile == "" {
			fatal("Error", errRequired("--file"))
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine, err := canvas.OpenFileEngine(watchFile, canvas.WithFileLogger(slog.Default()))
		if err != nil {
			fatal("Error watching file", err)
		}
		defer engine.Close()

		session, err := editor.Open(ctx, newClient(), engine, args[0],
			editor.WithViewer(viewer()),
			editor.WithSaveWindow(watchWindow),
			editor.WithLogger(slog.Default()),
		)
		if err != nil {
			fatal("Error opening whiteboard", err)
		}
		defer session.Close()

		if !session.Owner() {
			slog.Warn("not the owner, changes to the file will not be saved", "id", session.Whiteboard.ID)
		}
		slog.Info("watching", "file", watchFile, "id", session.Whiteboard.ID, "name", session.Whiteboard.Name)
		<-ctx.Done()
		slog.Info("stopping", "pending", session.Pump != nil && session.Pump.State() != persist.Idle)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchFile, "file", "", "Snapshot file to keep in sync")
	watchCmd.Flags().DurationVar(&watchWindow, "window", time.Second, "Quiet period before a save")
}
