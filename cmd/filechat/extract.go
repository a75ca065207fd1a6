package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"filechat/internal/core"
	"filechat/internal/extract"
)

// extractOutput is what the extract command prints for one file.
type extractOutput struct {
	core.ExtractionResult
	MediaType   string `json:"mediaType"`
	Failed      bool   `json:"failed,omitempty"`
	Error       string `json:"error,omitempty"`
	InlineBytes int    `json:"inlineBytes,omitempty"`
}

// NewExtractCommand runs the content extractor on local files and prints the
// result as JSON, one object per file.
func NewExtractCommand(ctx context.Context, fs afero.Fs) *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:     "extract <file>...",
		Short:   "Extract model input from local files",
		Example: "$ filechat extract report.pdf\n$ filechat extract --type text/plain notes.md",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x := extract.New(fs, nil)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			for _, path := range args {
				exists, err := afero.Exists(fs, path)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("%s: no such file", path)
				}

				ex := x.Extract(ctx, core.UploadedFile{
					OriginalName: filepath.Base(path),
					StoredPath:   path,
					MediaType:    mediaType,
				})
				if err := enc.Encode(describeExtraction(ex)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "declared media type (detected from content when empty)")
	return cmd
}

func describeExtraction(ex extract.Extraction) extractOutput {
	out := extractOutput{
		ExtractionResult: ex.Report(),
		MediaType:        ex.MediaType,
		Failed:           ex.Failed,
	}
	if ex.Err != nil {
		out.Error = ex.Err.Error()
	}
	if inline, ok := ex.Segment.(core.InlineBinarySegment); ok {
		out.InlineBytes = base64.StdEncoding.DecodedLen(len(inline.Data))
	}
	return out
}
