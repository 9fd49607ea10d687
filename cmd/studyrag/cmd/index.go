package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	studyerrors "github.com/Aman-CERP/studyrag/internal/errors"
	"github.com/Aman-CERP/studyrag/internal/output"
	"github.com/Aman-CERP/studyrag/internal/search"
	"github.com/Aman-CERP/studyrag/internal/ui"
	"github.com/Aman-CERP/studyrag/internal/watcher"
)

// maxDocumentBytes bounds a single indexed file.
const maxDocumentBytes = 32 << 20

type indexOptions struct {
	docID   string
	title   string
	force   bool
	watch   bool
	plain   bool
	noColor bool
}

func newIndexCmd(g *globals) *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Index a study document",
		Long: `Index a text or markdown document so it can be searched.

Pages are separated by form feed characters. Re-indexing a file whose
content has not changed is skipped unless --force is given. With --watch
the document is re-indexed whenever the file changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, g, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.docID, "doc", "", "Document ID (default: derived from the title or file name)")
	cmd.Flags().StringVar(&opts.title, "title", "", "Document title (default: file name)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-index even if the content is unchanged")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and re-index when the file changes")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain text progress output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, g *globals, path string, opts *indexOptions) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return studyerrors.New(studyerrors.ErrCodeInvalidPath, "invalid path", err).WithDetail("path", path)
	}
	if opts.title == "" {
		opts.title = titleFromPath(absPath)
	}
	if opts.docID == "" {
		opts.docID = search.DeriveDocumentID(opts.title, absPath)
	}

	engine, _, err := g.openEngine(search.OpenOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if _, err := ingestFile(ctx, cmd.OutOrStdout(), engine, absPath, opts, opts.force); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return watchAndReindex(ctx, cmd.OutOrStdout(), engine, absPath, opts)
}

// ingestFile reads path and ingests it with a progress renderer.
func ingestFile(ctx context.Context, out io.Writer, engine search.StudyEngine, path string, opts *indexOptions, force bool) (*search.IngestResult, error) {
	content, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	renderer := ui.NewRenderer(ui.NewConfig(out,
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithDocument(opts.docID),
	))
	if err := renderer.Start(ctx); err != nil {
		return nil, fmt.Errorf("start progress display: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	result, err := engine.Ingest(ctx, search.IngestRequest{
		DocumentID: opts.docID,
		Title:      opts.title,
		SourcePath: path,
		Content:    content,
		Force:      force,
		Progress:   renderer.UpdateProgress,
	})
	if err != nil {
		renderer.Fail(err)
		return nil, err
	}

	renderer.Complete(ui.CompletionStats{
		DocumentID: result.Document.ID,
		Title:      result.Document.Title,
		Pages:      result.Document.PageCount,
		Passages:   result.Document.PassageCount,
		Duration:   result.Duration,
		Unchanged:  result.Unchanged,
	})
	return result, nil
}

// readDocument loads a text document, rejecting binaries and oversized files.
func readDocument(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, studyerrors.New(studyerrors.ErrCodeFileNotFound, "file not found", err).
				WithDetail("path", path)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, studyerrors.New(studyerrors.ErrCodeFilePermission, "permission denied", err).
				WithDetail("path", path)
		}
		return nil, studyerrors.IOError("cannot read file", err)
	}
	if info.IsDir() {
		return nil, studyerrors.New(studyerrors.ErrCodeInvalidPath, "path is a directory, not a document", nil).
			WithDetail("path", path)
	}
	if info.Size() > maxDocumentBytes {
		return nil, studyerrors.New(studyerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("file is larger than %d MiB", maxDocumentBytes>>20), nil).
			WithDetail("path", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, studyerrors.IOError("cannot read file", err)
	}
	if !utf8.Valid(content) {
		return nil, studyerrors.ValidationError("file is not UTF-8 text", nil).
			WithDetail("path", path).
			WithSuggestion("Extract the text first, e.g. `pdftotext notes.pdf notes.txt`")
	}
	return content, nil
}

func titleFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// watchAndReindex re-ingests path on every change until ctx is cancelled.
// Unchanged content is skipped by the engine's hash check.
func watchAndReindex(ctx context.Context, out io.Writer, engine search.StudyEngine, path string, opts *indexOptions) error {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, path) }()

	o := output.New(out)
	o.Statusf("👀", "Watching %s (%s). Press Ctrl+C to stop.", path, w.WatcherType())

	for {
		select {
		case <-ctx.Done():
			o.Newline()
			o.Status("", "Stopped watching")
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		case err, ok := <-w.Errors():
			if ok {
				slog.Warn("watch_error", slog.String("path", path), slog.String("error", err.Error()))
			}
		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			handleWatchEvent(ctx, o, out, engine, event, opts)
		}
	}
}

func handleWatchEvent(ctx context.Context, o *output.Writer, out io.Writer, engine search.StudyEngine, event watcher.FileEvent, opts *indexOptions) {
	slog.Debug("watch_event",
		slog.String("path", event.Path),
		slog.String("op", event.Operation.String()))

	if event.Operation == watcher.OpDelete {
		o.Warningf("%s was removed; the indexed copy of %s is kept", event.Path, opts.docID)
		return
	}
	if _, err := ingestFile(ctx, out, engine, event.Path, opts, false); err != nil {
		slog.Warn("reindex_failed", slog.String("path", event.Path), slog.String("error", err.Error()))
		o.Errorf("Re-index failed: %s", studyerrors.Classify(err).Message)
	}
}
