package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"task-tracker/internal/config"
	"task-tracker/internal/model"
	"task-tracker/internal/notify"
	"task-tracker/internal/policy"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
)

var Version = "dev"

// operator is the caller used for administrative CLI commands.
var operator = policy.Caller{UserID: "cli", Role: model.RoleSystemAdministrator}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "tasktracker",
		Short:         "Task tracker with role-scoped access and notifications",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $TT_CONFIG)")

	load := func() (config.Config, error) {
		return config.Load(configPath)
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(userCmd(load))
	rootCmd.AddCommand(statsCmd(load))

	return rootCmd
}

type loader func() (config.Config, error)

// app holds the storage shared by commands.
type app struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	taskRepo *repository.TaskRepository
}

func openApp(cfg config.Config) (*app, error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return &app{
		db:       db,
		userRepo: repository.NewUserRepository(db),
		taskRepo: repository.NewTaskRepository(db),
	}, nil
}

// services builds the user and task services; task events go to events.
func (a *app) services(events notify.Publisher) (*service.UserService, *service.TaskService) {
	return service.NewUserService(a.userRepo, a.taskRepo), service.NewTaskService(a.taskRepo, a.userRepo, events)
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
