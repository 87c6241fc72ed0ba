package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize local configuration and storage",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "Only report which migrations are applied",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the config file to create",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your account and session",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
					&cli.StringFlag{
						Name:  "email",
						Usage: "Account email",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Account password (prompted when omitted)",
					},
				},
				Action: r.AuthRegister,
			},
			{
				Name:  "login",
				Usage: "Sign in and sync your profile with the backend",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "email",
						Usage: "Account email",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Account password (prompted when omitted)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the session as JSON",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear the local session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the signed-in user",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the session as JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

func stylesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "styles",
		Usage:  "List the predefined styles",
		Action: r.Styles,
	}
}

func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Run style transfers",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Apply a style to a photo and wait for the result",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "content",
						Aliases:  []string{"c"},
						Usage:    "Path to the photo to transform",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "style",
						Aliases:  []string{"s"},
						Usage:    "Predefined style ID (style_1, style_2, style_3) or path to a style image",
						Required: true,
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Suppress the progress bar",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the result as JSON",
					},
				},
				Action: r.TransferRun,
			},
			{
				Name:  "history",
				Usage: "Show locally recorded transfers",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of transfers to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TransferHistory,
			},
		},
	}
}

func galleryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "gallery",
		Aliases: []string{"g"},
		Usage:   "Browse and manage transformed images",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List one page of the gallery",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "per-page",
						Usage: "Images per page (defaults to gallery.per_page)",
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort order: server, newest, oldest or name",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, json, csv or markdown",
						Value:   "table",
					},
				},
				Action: r.GalleryList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a transformed image",
				ArgsUsage: "FILENAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: r.GalleryDelete,
			},
			{
				Name:      "download",
				Usage:     "Download a transformed image",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to save into (defaults to images.download_dir)",
					},
				},
				Action: r.GalleryDownload,
			},
			{
				Name:      "open",
				Usage:     "Open a transformed image in the system viewer",
				ArgsUsage: "PATH",
				Action:    r.GalleryOpen,
			},
			{
				Name:  "export",
				Usage: "Download every image with an index and manifest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Output directory",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Index format: json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent downloads",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Downloads per second",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the manifest as JSON",
					},
				},
				Action: r.GalleryExport,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive gallery and transfer interface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "content",
				Aliases: []string{"c"},
				Usage:   "Photo to transform from the style picker",
			},
		},
		Action: r.TUI,
	}
}
