package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sevigo/gwdata/datasource"
	"github.com/sevigo/gwdata/preview"
	"github.com/sevigo/gwdata/schema"
)

// FetchOptions holds the options of the fetch command that are not settings.
type FetchOptions struct {
	Name   string
	Limit  int
	Format string
	Types  bool
}

var outputFormats = []string{"table", "markdown", "html", "json"}

func newFetchCommand() *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a remote resource and preview the parsed rows",
		Example: `  # Preview the first rows of a CSV file
  gwdata fetch https://example.org/sales.csv

  # Decode a legacy file and commit it under a custom name
  gwdata fetch https://example.org/umsatz.csv --encoding windows-1252 --commit --name "Umsatz"

  # Emit the staged dataset as JSON
  gwdata fetch https://example.org/sales.csv --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Name, "name", "", "Name for the staged dataset (default: derived from the URL)")
	flags.IntVar(&opts.Limit, "limit", preview.DefaultLimit, "Rows to preview (-1 for all)")
	flags.StringVarP(&opts.Format, "format", "f", "table", "Output format ("+strings.Join(outputFormats, "|")+")")
	flags.BoolVar(&opts.Types, "types", false, "Show inferred field types in the header")

	flags.String("encoding", "", "Character encoding of the resource")
	flags.Bool("commit", false, "Commit the dataset after a successful download")
	flags.String("header", "", "Whether the first row is a header (present|absent)")
	flags.Int("sample-size", 0, "Keep a random sample of this many rows (0 keeps all)")
	flags.Uint64("seed", 0, "Seed for row sampling")
	flags.Int64("max-size", 0, "Maximum download size in bytes")
	flags.Int("chunk-size", 0, "Read buffer size in bytes")
	flags.Duration("timeout", 0, "Overall download timeout")
	flags.String("user-agent", "", "User-Agent sent with the request")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runFetch(cmd *cobra.Command, url string, opts *FetchOptions) error {
	a := fromContext(cmd.Context())
	if !slices.Contains(outputFormats, opts.Format) {
		return fmt.Errorf("unknown format %q (want one of %s)", opts.Format, strings.Join(outputFormats, ", "))
	}

	// Commit after the rename below so the snapshot carries the chosen name.
	cfg := *a.cfg
	commit := cfg.Fetch.AutoCommit
	cfg.Fetch.AutoCommit = false

	remote, err := newRemote(&cfg, a.logger)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	unsubscribe := remote.State().Subscribe(progressPrinter(errOut))
	err = remote.Download(cmd.Context(), url, cfg.Fetch.Encoding)
	unsubscribe()
	fmt.Fprintln(errOut)
	if err != nil {
		return fmt.Errorf("download failed: %s", datasource.Message(err))
	}

	staging := remote.Staging()
	if opts.Name != "" {
		staging.UpdateTempName(opts.Name)
	}

	var snapshot schema.Snapshot
	if commit {
		snapshot = remote.Commit()
	}

	ds := staging.Temporary()
	fmt.Fprintln(errOut, preview.Summary(staging.TemporaryName(), ds))
	if !snapshot.IsZero() {
		fmt.Fprintf(errOut, "committed %q as %s\n", snapshot.Name, snapshot.ID)
	}

	return render(cmd.OutOrStdout(), staging.TemporaryName(), ds, opts)
}

func render(w io.Writer, name string, ds schema.TabularDataset, opts *FetchOptions) error {
	previewOpts := preview.Options{Limit: opts.Limit, ShowTypes: opts.Types}

	switch opts.Format {
	case "table":
		return preview.Table(w, ds, previewOpts)
	case "markdown":
		_, err := io.WriteString(w, preview.Markdown(ds, previewOpts))
		return err
	case "html":
		out, err := preview.HTML(ds, previewOpts)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Name    string                `json:"name"`
			Dataset schema.TabularDataset `json:"dataset"`
		}{name, ds})
	default:
		return fmt.Errorf("unknown format %q (want one of %s)", opts.Format, strings.Join(outputFormats, ", "))
	}
}

// progressPrinter redraws a single progress line whenever the percentage moves.
func progressPrinter(w io.Writer) func(schema.DownloadState) {
	last := -1
	return func(s schema.DownloadState) {
		if !s.Downloading || s.Failed() || s.ProgressPercent == last {
			return
		}
		last = s.ProgressPercent
		fmt.Fprintf(w, "\rdownloading %s %3d%%", s.URL, s.ProgressPercent)
	}
}
