package main

import (
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/service"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage back-office accounts",
	}
	cmd.AddCommand(newCreateAdminCmd(a))
	return cmd
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var in service.CreateUserInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database()
			if err != nil {
				return err
			}
			users := service.NewUserService(
				repository.NewUserRepository(db.DB()),
				repository.NewRefreshTokenRepository(db.DB()),
				a.cfg.JWT,
			)

			in.Role = domain.RoleAdmin
			user, err := users.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}
