package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"whiteboard/api/internal/board"
)

var (
	listJSON     bool
	listStatus   string
	createStatus string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your whiteboards",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var status board.Status
		if listStatus != "" {
			parsed, err := board.ParseStatus(strings.ToUpper(listStatus))
			if err != nil {
				fatal("Error", err)
			}
			status = parsed
		}

		items, err := newClient().ListWhiteboards(context.Background(), status)
		if err != nil {
			fatal("Error listing whiteboards", err)
		}
		if listJSON {
			printJSON(items)
			return
		}
		for _, item := range items {
			fmt.Printf("%s\t%-9s\t%d comments\t%s\n", item.ID, item.Status, item.CommentCount, item.Name)
		}
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a whiteboard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := board.CreateWhiteboardInput{Name: args[0]}
		if createStatus != "" {
			status, err := board.ParseStatus(strings.ToUpper(createStatus))
			if err != nil {
				fatal("Error", err)
			}
			input.Status = status
		}
		wb, err := newClient().CreateWhiteboard(context.Background(), input)
		if err != nil {
			fatal("Error creating whiteboard", err)
		}
		fmt.Printf("%s\t%s\tshare=%s\n", wb.ID, wb.Status, wb.ShareID)
	},
}

func statusCommand(use, short string, status board.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			wb, err := newClient().SetStatus(context.Background(), args[0], status)
			if err != nil {
				fatal("Error updating whiteboard", err)
			}
			fmt.Printf("%s is now %s (share id %s)\n", wb.ID, wb.Status, wb.ShareID)
		},
	}
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a whiteboard between draft and published",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wb, err := newClient().ToggleStatus(context.Background(), args[0])
		if err != nil {
			fatal("Error updating whiteboard", err)
		}
		fmt.Printf("%s is now %s (share id %s)\n", wb.ID, wb.Status, wb.ShareID)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a whiteboard and its comments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().DeleteWhiteboard(context.Background(), args[0]); err != nil {
			fatal("Error deleting whiteboard", err)
		}
		fmt.Printf("deleted %s\n", args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search whiteboard names and comments",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		res, err := newClient().Search(context.Background(), strings.Join(args, " "), 20)
		if err != nil {
			fatal("Error searching", err)
		}
		for _, r := range res.Results {
			fmt.Printf("%s\t%s\t%s\t%s\n", r.Type, r.WhiteboardID, r.Title, r.Snippet)
		}
		fmt.Printf("%d result(s)\n", res.Total)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List saved versions of a whiteboard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		versions, err := newClient().History(context.Background(), args[0], 0)
		if err != nil {
			fatal("Error reading history", err)
		}
		for _, v := range versions {
			fmt.Printf("%s\t%s\t%s\t%s\n", v.Hash[:min(len(v.Hash), 10)], v.CreatedAt.Format("2006-01-02 15:04:05"), v.Author, v.Message)
		}
	},
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON", err)
	}
}

func init() {
	rootCmd.AddCommand(listCmd, createCmd, toggleCmd, deleteCmd, searchCmd, historyCmd)
	rootCmd.AddCommand(statusCommand("publish", "Publish a whiteboard so its share link works", board.StatusPublished))
	rootCmd.AddCommand(statusCommand("unpublish", "Return a whiteboard to draft", board.StatusDraft))

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only DRAFT or PUBLISHED")
	createCmd.Flags().StringVar(&createStatus, "status", "", "Initial status (DRAFT or PUBLISHED)")
}
