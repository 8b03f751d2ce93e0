package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"whiteboard/api/internal/canvas"
	"whiteboard/api/internal/editor"
	"whiteboard/api/internal/overlay"
)

var (
	pinsCamera    cameraFlags
	commentCamera cameraFlags
	commentAtX    float64
	commentAtY    float64
	shareCamera   cameraFlags
)

func errRequired(flag string) error {
	return fmt.Errorf("%s is required", flag)
}

func printPins(pins []overlay.Pin) {
	for _, pin := range pins {
		fmt.Printf("%s\tscreen=(%.1f, %.1f)\tworld=(%.1f, %.1f)\t%s: %s\n",
			pin.Comment.ID, pin.Screen.X, pin.Screen.Y, pin.Comment.X, pin.Comment.Y,
			pin.Comment.UserName, pin.Comment.Content)
	}
}

var pinsCmd = &cobra.Command{
	Use:   "pins <id>",
	Short: "Show where comment pins land on screen for a camera",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := canvas.NewMemoryEngine(pinsCamera.camera())
		ctrl := overlay.New(args[0], newClient(), engine, overlay.WithLogger(slog.Default()))
		if err := ctrl.Load(context.Background()); err != nil {
			fatal("Error loading comments", err)
		}
		printPins(ctrl.Pins())
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Place a comment at a screen position",
	Long: `The screen position given by --at-x/--at-y is mapped to canvas
coordinates through the camera flags, the same way a click would be.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		engine := canvas.NewMemoryEngine(commentCamera.camera())
		ctrl := overlay.New(args[0], newClient(), engine, overlay.WithLogger(slog.Default()))

		ctrl.BeginPlacement()
		if !ctrl.Pointer(canvas.Point{X: commentAtX, Y: commentAtY}) {
			fatal("Error", errors.New("could not place the comment"))
		}
		created, err := ctrl.Submit(context.Background(), strings.Join(args[1:], " "))
		if err != nil {
			fatal("Error creating comment", err)
		}
		fmt.Printf("%s at (%.1f, %.1f) by %s\n", created.ID, created.X, created.Y, created.UserName)
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <share-id>",
	Short: "Open a published whiteboard by its share id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := canvas.NewMemoryEngine(shareCamera.camera())
		session, err := editor.OpenShared(context.Background(), newClient(), engine, args[0], editor.WithLogger(slog.Default()))
		if err != nil {
			fatal("Error opening shared whiteboard", err)
		}
		defer session.Close()

		wb := session.Whiteboard
		fmt.Printf("%s\t%s\t%s\tcontent loaded: %t\n", wb.ID, wb.Status, wb.Name, session.Loaded)
		printPins(session.Overlay.Pins())
	},
}

func init() {
	rootCmd.AddCommand(pinsCmd, commentCmd, shareCmd)
	pinsCamera.register(pinsCmd)
	commentCamera.register(commentCmd)
	shareCamera.register(shareCmd)
	commentCmd.Flags().Float64Var(&commentAtX, "at-x", 0, "Screen x of the pin")
	commentCmd.Flags().Float64Var(&commentAtY, "at-y", 0, "Screen y of the pin")
}
