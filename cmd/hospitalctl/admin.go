package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/hospital-api/internal/auth"
	"github.com/mesikahq/hospital-api/internal/cache"
	"github.com/mesikahq/hospital-api/internal/database"
)

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			db, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer database.Disconnect(db)

			svc := auth.NewService(auth.NewPostgresRepository(db), nil, cache.New(nil, ""), auth.AuthServiceConfig{
				JWTSecret: cfg.Auth.JWTSecret,
			}, logger)
			account, err := svc.CreateAccount(ctx, email, password, name, []auth.Role{auth.RoleAdmin})
			if err != nil {
				return err
			}

			fmt.Printf("Admin account created: %s (%s)\n", account.Email, account.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Admin email")
	cmd.Flags().String("password", "", "Admin password")
	cmd.Flags().String("name", "Administrator", "Display name")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
