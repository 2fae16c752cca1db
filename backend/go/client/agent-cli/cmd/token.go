package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/spf13/cobra"
)

var (
	tokenSecret string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token [source-id]",
	Short: "Sign a bearer token accepted by an agent with the given source id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSecret == "" {
			return fmt.Errorf("--secret is required")
		}
		signed, err := signToken(tokenSecret, args[0], tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "auth.jwtSecret of the agent")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func signToken(secret, sourceID string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": sourceID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
