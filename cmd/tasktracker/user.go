package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"task-tracker/internal/model"
	"task-tracker/internal/notify"
	"task-tracker/internal/service"
)

func userCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userAddCmd(load), userListCmd(load))
	return cmd
}

func userAddCmd(load loader) *cobra.Command {
	var username, email, password, role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, ok := model.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			users, _ := a.services(notify.Discard)
			user, err := users.Create(cmd.Context(), operator, service.UserInput{
				Username: username,
				Email:    email,
				Password: password,
				Role:     parsed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "role name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			users, _ := a.services(notify.Discard)
			list, err := users.List(cmd.Context(), operator)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tTELEGRAM\tCREATED")
			for _, u := range list {
				linked := "-"
				if u.TelegramChatID != nil {
					linked = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					u.ID, u.Username, u.Email, u.Role, linked, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}
