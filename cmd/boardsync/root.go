package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"whiteboard/api/internal/auth"
	"whiteboard/api/internal/canvas"
	"whiteboard/api/internal/client"
)

var (
	verbose bool
	apiURL  string
	token   string
)

var rootCmd = &cobra.Command{
	Use:   "boardsync",
	Short: "Sync and annotate whiteboards from the command line",
	Long: `boardsync talks to the whiteboard API: it lists and publishes boards,
keeps a local snapshot file saved to the server as it changes, and places
comment pins by screen position under a given camera.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("WHITEBOARD_API_URL", "http://localhost:8787"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("WHITEBOARD_TOKEN"), "Bearer token")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newClient() *client.Client {
	c, err := client.New(client.Config{BaseURL: apiURL, Token: token, Logger: slog.Default()})
	if err != nil {
		fatal("Error creating client", err)
	}
	return c
}

// viewer is the subject of the configured token, empty when anonymous.
func viewer() string {
	if token == "" {
		return ""
	}
	subject, err := auth.SubjectUnverified(token)
	if err != nil {
		slog.Warn("token unreadable, continuing anonymously", "error", err)
		return ""
	}
	return subject
}

type cameraFlags struct {
	x, y, zoom float64
}

func (f *cameraFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.x, "cam-x", 0, "Camera x offset")
	cmd.Flags().Float64Var(&f.y, "cam-y", 0, "Camera y offset")
	cmd.Flags().Float64Var(&f.zoom, "zoom", 1, "Camera zoom")
}

func (f *cameraFlags) camera() canvas.Camera {
	cam := canvas.Camera{X: f.x, Y: f.y, Zoom: f.zoom}
	if !cam.Valid() {
		fatal("Error", fmt.Errorf("unusable %s", cam))
	}
	return cam
}
