package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/movement-ingest/internal/domain/import/model"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/movement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/movement-ingest/internal/domain/import/sniffer"
	"github.com/FACorreiaa/movement-ingest/pkg/storage"
)

func (a *app) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported file formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, f := range parser.DefaultRegistry().Formats() {
				fmt.Fprintln(a.out, f)
			}
			return nil
		},
	}
}

func (a *app) layoutCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "layout FILE",
		Short: "Suggest a free-form layout for an unknown spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			s, err := sniffer.Suggest(data)
			if err != nil {
				return err
			}
			if err := writeJSON(a.out, s); err != nil {
				return err
			}
			if out == "" {
				return nil
			}
			if !s.Complete() {
				return fmt.Errorf("layout not written, missing columns: %v", s.Missing)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return writeJSON(f, s.Layout)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the layout to this file for use with --layout")
	return cmd
}

// fileFlags are shared by the commands that read a new file.
type fileFlags struct {
	format string
	layout string
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "declared file format or provider alias")
	cmd.Flags().StringVar(&f.layout, "layout", "", "JSON column layout for the free-form format")
	_ = cmd.MarkFlagRequired("format")
}

func (f *fileFlags) upload(path string) (storage.Upload, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storage.Upload{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	up := storage.Upload{Name: filepath.Base(path), Format: f.format}
	if f.layout != "" {
		if up.Config, err = os.ReadFile(f.layout); err != nil {
			return storage.Upload{}, nil, fmt.Errorf("failed to read layout: %w", err)
		}
	}
	return up, data, nil
}

type previewOutput struct {
	FileID  uuid.UUID                    `json:"fileId"`
	Preview *importservice.PreviewResult `json:"preview"`
}

func (a *app) previewCommand() *cobra.Command {
	var flags fileFlags
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Extract a file and report candidate rows, duplicates and errors",
		Long: "Extract a file and report candidate rows, duplicates and errors.\n" +
			"The file is archived; pass the printed fileId to commit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := a.load(ctx)
			if err != nil {
				return err
			}
			up, data, err := flags.upload(args[0])
			if err != nil {
				return err
			}

			info, err := deps.Archive.Put(ctx, a.user, up, bytes.NewReader(data))
			if err != nil {
				return err
			}

			res, err := deps.ImportService.Preview(ctx, importservice.PreviewRequest{
				UserIdentity: a.user,
				Format:       up.Format,
				FileName:     up.Name,
				Data:         data,
				Config:       up.Config,
			})
			if res != nil {
				if werr := writeJSON(a.out, previewOutput{FileID: info.ID, Preview: res}); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) commitCommand() *cobra.Command {
	var (
		fileID string
		rows   string
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Persist rows of an archived file",
		Long: "Persist rows of a previously previewed file. Without --rows every\n" +
			"row not flagged as a duplicate is committed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := uuid.Parse(fileID)
			if err != nil {
				return fmt.Errorf("invalid --file: %w", err)
			}
			deps, err := a.load(ctx)
			if err != nil {
				return err
			}

			rc, info, err := deps.Archive.Open(ctx, a.user, id)
			if err != nil {
				return err
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return fmt.Errorf("failed to read archived file: %w", err)
			}

			preview, err := deps.ImportService.Preview(ctx, importservice.PreviewRequest{
				UserIdentity: a.user,
				Format:       info.Format,
				FileName:     info.Name,
				Data:         data,
				Config:       info.Config,
			})
			if err != nil {
				return err
			}

			selected, err := selectRows(preview.Rows, rows)
			if err != nil {
				return err
			}

			res, err := deps.ImportService.Commit(ctx, importservice.CommitRequest{
				UserIdentity: a.user,
				FileName:     info.Name,
				Format:       preview.Format,
				TotalRows:    preview.TotalSeen,
				Rows:         selected,
			})
			if err != nil {
				return err
			}
			return writeJSON(a.out, res)
		},
	}
	cmd.Flags().StringVar(&fileID, "file", "", "archived file id printed by preview")
	cmd.Flags().StringVar(&rows, "rows", "", "comma separated source rows to commit, ranges allowed (2,5-9)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	var flags fileFlags
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Extract and commit a file in one step, skipping duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := a.load(ctx)
			if err != nil {
				return err
			}
			up, data, err := flags.upload(args[0])
			if err != nil {
				return err
			}
			if _, err := deps.Archive.Put(ctx, a.user, up, bytes.NewReader(data)); err != nil {
				return err
			}

			res, err := deps.ImportService.Import(ctx, importservice.PreviewRequest{
				UserIdentity: a.user,
				Format:       up.Format,
				FileName:     up.Name,
				Data:         data,
				Config:       up.Config,
			})
			if res != nil {
				if werr := writeJSON(a.out, res); werr != nil {
					return werr
				}
			}
			var fileErr *model.FileLevelError
			if errors.As(err, &fileErr) {
				return fmt.Errorf("file rejected: %w", err)
			}
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past imports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := a.load(ctx)
			if err != nil {
				return err
			}
			records, err := deps.ImportService.History(ctx, a.user, limit)
			if err != nil {
				return err
			}
			return writeHistory(a.out, records, output)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records (default 50)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "json or csv")
	return cmd
}

func (a *app) filesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List archived files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := a.load(ctx)
			if err != nil {
				return err
			}
			files, err := deps.Archive.List(ctx, a.user)
			if err != nil {
				return err
			}
			return writeJSON(a.out, files)
		},
	}
}
