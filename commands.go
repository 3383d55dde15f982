package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebben/riool/codeindex"
	"github.com/tebben/riool/database"
	"github.com/tebben/riool/server"
	"github.com/tebben/riool/service"
	"github.com/tebben/riool/settings"
	"github.com/tebben/riool/sufrib"
	"github.com/tebben/riool/tasks"
	"github.com/tebben/riool/upload"
)

// components opens everything a service needs except the task queue.
type components struct {
	store     *database.Store
	assembler *upload.Assembler
	index     *codeindex.Index
}

func openComponents(config settings.Config) (*components, error) {
	assembler, err := upload.NewAssembler(config.Upload.TempDir, config.Upload.Dir)
	if err != nil {
		return nil, err
	}

	index, err := codeindex.Open(config.Index.Path, config.Index.InMemory)
	if err != nil {
		return nil, err
	}

	return &components{
		store:     database.NewStore(config.Database),
		assembler: assembler,
		index:     index,
	}, nil
}

func (c *components) Close() {
	if err := c.index.Close(); err != nil {
		log.Errorf("Failed to close code index: %v", err)
	}
	database.CloseDBPools()
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := settings.GetConfig()

			c, err := openComponents(config)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("database not available: %w", err)
			}

			queue, err := tasks.NewQueue(config.Tasks)
			if err != nil {
				return err
			}
			svc := service.New(c.store, queue, c.assembler, c.index)
			queue.Register(svc)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				if err := queue.Run(ctx); err != nil {
					log.Errorf("Task router stopped: %v", err)
				}
			}()
			<-queue.Running()

			// uploads that were pending when the server stopped
			if err := queue.ComputeLostCapacityAsync(); err != nil {
				log.Errorf("Failed to queue lost capacity computation: %v", err)
			}

			server.Start(config, svc, queue.IsRunning)

			cancel()
			return queue.Close()
		},
	}
}

func newCreateCommand() *cobra.Command {
	var drop bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer database.CloseDBPools()
			return database.CreateDB(cmd.Context(), settings.GetConfig().Database, drop)
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop existing tables first")
	return cmd
}

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE...",
		Short: "Store and process survey files without the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openComponents(settings.GetConfig())
			if err != nil {
				return err
			}
			defer c.Close()

			// Load processes synchronously, nothing is queued
			svc := service.New(c.store, nil, c.assembler, c.index)
			for _, path := range args {
				u, err := svc.Load(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", u.ID, u.Filename, u.Status)
			}
			return nil
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Parse survey files and print their errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				n, err := checkFile(cmd, path)
				if err != nil {
					return err
				}
				if n > 0 {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files have errors", failed, len(args))
			}
			return nil
		},
	}
}

func checkFile(cmd *cobra.Command, path string) (int, error) {
	out := cmd.OutOrStdout()

	if _, err := sufrib.Kind(path); err != nil {
		fmt.Fprintf(out, "%s: %v\n", path, err)
		return 1, nil
	}

	file, err := sufrib.ParseFile(path)
	if err != nil {
		return 0, err
	}

	name := filepath.Base(path)
	if !file.HasErrors() {
		fmt.Fprintf(out, "%s: %d records, ok\n", name, len(file.Records))
		return 0, nil
	}
	for _, e := range file.Errors {
		fmt.Fprintf(out, "%s:%d: %s\n", name, e.Line, e.Message)
	}
	return len(file.Errors), nil
}

func parseUploadID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid upload id %q", value)
	}
	return id, nil
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export UPLOAD_ID FILE.parquet",
		Short: "Write the flood percentages of an upload to a parquet file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUploadID(args[0])
			if err != nil {
				return err
			}

			c, err := openComponents(settings.GetConfig())
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := service.New(c.store, nil, c.assembler, c.index).ExportParquet(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", n, args[1])
			return nil
		},
	}
}

func newReportCommand() *cobra.Command {
	var worst int
	var parquetPath string

	cmd := &cobra.Command{
		Use:   "report UPLOAD_ID",
		Short: "Summarize the flood percentages of an upload per class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUploadID(args[0])
			if err != nil {
				return err
			}

			path := parquetPath
			if path == "" {
				dir, err := os.MkdirTemp("", "riool-report")
				if err != nil {
					return err
				}
				defer os.RemoveAll(dir)
				path = filepath.Join(dir, "report.parquet")
			}

			c, err := openComponents(settings.GetConfig())
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := service.New(c.store, nil, c.assembler, c.index).Report(cmd.Context(), id, path, worst)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().IntVar(&worst, "worst", 10, "number of most flooded sewers to list")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "keep the parquet export at this path")
	return cmd
}
