package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/funnelkit/qrstock/internal/app"
	"github.com/funnelkit/qrstock/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Error("qrstock failed")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config.yaml",
	}
	appConfig := func(c *cli.Context) config.AppConfig {
		return config.AppConfig{ConfigPath: c.String("config")}
	}

	return &cli.App{
		Name:  "qrstock",
		Usage: "QR code inventory and allocation admin service",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the admin API",
				Action: func(c *cli.Context) error {
					return app.RunServer(c.Context, appConfig(c))
				},
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					return app.Migrate(c.Context, appConfig(c))
				},
			},
			{
				Name:  "create-admin",
				Usage: "create an admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"QRSTOCK_ADMIN_PASSWORD"}},
					&cli.BoolFlag{Name: "super", Usage: "grant every permission"},
					&cli.StringSliceFlag{Name: "permission", Usage: "permission key such as \"GET /v0/admin/codes\"; repeatable"},
				},
				Action: func(c *cli.Context) error {
					admin, err := app.CreateAdmin(c.Context, appConfig(c), app.CreateAdminParams{
						Username:    c.String("username"),
						Password:    c.String("password"),
						SuperAdmin:  c.Bool("super"),
						Permissions: c.StringSlice("permission"),
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "created admin %s (id=%d)\n", admin.Username, admin.ID)
					return nil
				},
			},
			{
				Name:  "reconcile",
				Usage: "recompute batch ledgers from their codes",
				Action: func(c *cli.Context) error {
					summary, err := app.Reconcile(c.Context, appConfig(c))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "checked %d batches, %d drifted\n", summary.Checked, len(summary.Changed))
					for _, result := range summary.Changed {
						fmt.Fprintf(c.App.Writer, "  %s: %+v -> %+v\n", result.BatchNumber, result.Before, result.After)
					}
					return nil
				},
			},
		},
	}
}
