package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parent-messenger/internal/app"
	"parent-messenger/internal/config"
	"parent-messenger/internal/database"
	"parent-messenger/internal/phone"
	"parent-messenger/internal/roster"
)

func (c *cli) previewCmd() *cobra.Command {
	var (
		sf    sheetFlags
		marks string
		ia    int
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show how a roster (and optionally a marks sheet) will be read, without sending",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			prefix, err := phone.NewPrefix(cfg.CountryCode)
			if err != nil {
				return &config.Error{Key: "COUNTRY_CODE", Reason: err.Error()}
			}

			students := sf.sheet()
			sheets, err := students.SheetNames()
			if err != nil {
				return err
			}
			load := app.StudentsLoader(students, sf.only)
			if marks != "" {
				if ia <= 0 {
					return errors.New("--ia is required with --marks")
				}
				m := app.Sheet{Name: marks, Path: marks}
				if roster.IsWorkbook(marks) {
					m.Sheet = roster.AssessmentSheet(ia)
				}
				load = app.MarksLoader(students, m, sf.only)
			}
			r, err := load(cmd.Context())
			if err != nil {
				return err
			}
			return c.printPreview(app.Preview(r, sheets, prefix))
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&marks, "marks", "", "marks workbook to join")
	cmd.Flags().IntVar(&ia, "ia", 0, "internal assessment number")
	return cmd
}

func (c *cli) filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files [dir]",
		Short: "List the spreadsheets under a directory and their sheets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			paths, err := roster.Discover(dir)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(paths)
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			for _, p := range paths {
				sheets, err := roster.SheetNamesFile(p)
				if err != nil {
					fmt.Fprintf(w, "%s\t(unreadable: %v)\n", p, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", p, joinOr(sheets, "-"))
			}
			return w.Flush()
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	var fromSQLite string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the dispatch log tables, optionally copying an old SQLite log",
		Long: `migrate creates or updates the dispatch log tables in the database selected
by DB_DRIVER. With --from-sqlite it also copies every row from a local SQLite
log, which is how a deployment moves its history to PostgreSQL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := c.loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			dst, err := database.Open(cfg, log)
			if err != nil {
				return err
			}
			if dst == nil {
				return &config.Error{Key: "DB_DRIVER", Reason: "not set; nothing to migrate"}
			}
			if fromSQLite == "" {
				log.Info("Dispatch log is up to date", zap.String("driver", cfg.DBDriver))
				return nil
			}

			src, err := database.OpenSQLite(fromSQLite)
			if err != nil {
				return err
			}
			if err := database.CopyLog(src, dst, log); err != nil {
				return err
			}
			log.Info("Dispatch log copied", zap.String("from", fromSQLite), zap.String("driver", cfg.DBDriver))
			return nil
		},
	}
	cmd.Flags().StringVar(&fromSQLite, "from-sqlite", "", "SQLite dispatch log to copy from")
	return cmd
}
