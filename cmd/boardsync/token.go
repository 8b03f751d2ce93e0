package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"whiteboard/api/internal/auth"
)

var (
	tokenSecret    string
	tokenFirstName string
	tokenLastName  string
	tokenUsername  string
	tokenEmail     string
	tokenTTL       time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a development bearer token",
	Long: `Signs a token with the server's development secret. The profile flags
decide how the user's name appears on their comments.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		now := time.Now()
		signed, err := auth.IssueToken([]byte(tokenSecret), auth.Claims{
			FirstName: tokenFirstName,
			LastName:  tokenLastName,
			Username:  tokenUsername,
			Email:     tokenEmail,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   args[0],
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			},
		})
		if err != nil {
			fatal("Error issuing token", err)
		}
		fmt.Fprintln(os.Stdout, signed)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", envOr("WHITEBOARD_JWT_SECRET", "whiteboard-dev-secret"), "Signing secret")
	tokenCmd.Flags().StringVar(&tokenFirstName, "first-name", "", "First name")
	tokenCmd.Flags().StringVar(&tokenLastName, "last-name", "", "Last name")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "Username")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
