package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/models"
	"github.com/imagehost/backend/pkg/jwt"
	"github.com/imagehost/backend/pkg/validation"
	"github.com/spf13/cobra"
)

func newTokenCommand(conf func() *config.Config) *cobra.Command {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an identity",
		Long: `Mint a signed bearer token the API accepts, for local development and
scripting. The owner record is created on the token's first use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf()

			if userID == "" {
				userID = uuid.NewString()
			} else if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("invalid --user-id: %w", err)
			}
			if email != "" && !validation.ValidateEmail(email) {
				return fmt.Errorf("invalid --email: %q", email)
			}
			if role != string(models.RoleUser) && role != string(models.RoleAdmin) {
				return fmt.Errorf("invalid --role %q: want user or admin", role)
			}
			tokenType, defaultTTL := jwt.AccessToken, cfg.JWTAccessTokenDuration
			if upload {
				tokenType, defaultTTL = jwt.UploadToken, cfg.ShareXTokenDuration
			}
			if ttl <= 0 {
				ttl = defaultTTL
			}
			token, err := jwt.GenerateToken(jwt.Identity{UserID: userID, Email: email, Role: role}, tokenType, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "owner uuid (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "owner email")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "owner role: user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to the configured access or ShareX duration)")
	cmd.Flags().BoolVar(&upload, "upload", false, "mint a long-lived upload token instead of an access token")
	return cmd
}
