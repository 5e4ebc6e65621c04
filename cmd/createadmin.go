/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rmgwatch/apiserver/config"
	"github.com/rmgwatch/apiserver/internal/db"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	createAdminUsername string
	createAdminEmail    string
	createAdminPassword string
)

// createAdminCmd bootstraps the first administrator account. Regular
// registration only ever produces unverified "user" accounts, so this
// is the way in for a fresh deployment.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(createAdminUsername)
		email := strings.TrimSpace(createAdminEmail)
		if username == "" || email == "" || createAdminPassword == "" {
			return errors.New("username, email and password are required")
		}
		if len(createAdminPassword) < 8 {
			return errors.New("password must be at least 8 characters")
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = dbConn.Close()
		}()

		hash, err := bcrypt.GenerateFromPassword([]byte(createAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		users := store.NewUserRepository(dbConn)
		admin, err := users.Create(cmd.Context(), types.User{
			Username:         username,
			Email:            email,
			Role:             types.RoleAdmin,
			PasswordHash:     string(hash),
			IsVerified:       true,
			VerificationID:   "bootstrap",
			VerificationType: "bootstrap",
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("account %q already exists", username)
			}
			return err
		}

		fmt.Printf("created admin account %q (id %d)\n", admin.Username, admin.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)

	createAdminCmd.Flags().StringVar(&createAdminUsername, "username", "", "admin username")
	createAdminCmd.Flags().StringVar(&createAdminEmail, "email", "", "admin email address")
	createAdminCmd.Flags().StringVar(&createAdminPassword, "password", "", "admin password")
}
