package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pratik-mahalle/assetwatch/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	cmd.AddCommand(newAuthTokenCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())

	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Store an API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = promptSecret(cmd.ErrOrStderr(), "Token: ")
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token is required")
			}

			claims, err := decodeClaims(token)
			if err != nil {
				return err
			}

			viper.Set("auth.token", token)
			viper.Set("auth.user", claims.UserID)
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s\n", claims.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token (prompted if omitted)")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", "")
			viper.Set("auth.user", "")

			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
			return nil
		},
	}
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity carried by the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := viper.GetString("auth.token")
			if token == "" {
				return fmt.Errorf("not authenticated. Run 'assetwatch auth token' first")
			}
			claims, err := decodeClaims(token)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if getOutputFormat() != "table" {
				return printOutput(out, claims)
			}

			fmt.Fprintf(out, "User:        %s\n", claims.UserID)
			if claims.Email != "" {
				fmt.Fprintf(out, "Email:       %s\n", claims.Email)
			}
			if claims.Role != "" {
				fmt.Fprintf(out, "Role:        %s\n", claims.Role)
			}
			if len(claims.Permissions) > 0 {
				fmt.Fprintf(out, "Permissions: %s\n", strings.Join(claims.Permissions, ", "))
			}
			if claims.ExpiresAt != nil {
				exp := claims.ExpiresAt.Time
				state := "valid"
				if time.Now().After(exp) {
					state = "expired"
				}
				fmt.Fprintf(out, "Expires:     %s (%s)\n", exp.Format(time.RFC3339), state)
			}
			return nil
		},
	}
}

// decodeClaims reads token claims without verifying the signature.
// The server remains the only verifier.
func decodeClaims(token string) (*auth.Claims, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token carries no user id")
	}
	return claims, nil
}

func promptSecret(w io.Writer, prompt string) string {
	fmt.Fprint(w, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		return strings.TrimSpace(line)
	}
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return ""
	}
	return string(secret)
}
