package cli

import (
	"github.com/spf13/cobra"

	"github.com/sevigo/gwdata/config"
	"github.com/sevigo/gwdata/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the download, staging and commit API over HTTP",
		Example: `  # Serve on the default address
  gwdata serve

  # Offer a resource to clients and route proxy traffic through a corporate proxy
  gwdata serve --resource-url https://example.org/sales.csv --download-proxy http://proxy:3128`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("addr", "", "Listen address (default: "+config.DefaultAddr+")")
	flags.String("resource-url", "", "Resource offered to clients as the default download")
	flags.Bool("proxy", true, "Serve /gw/proxy_view")
	flags.String("download-proxy", "", "HTTP proxy for outbound proxy requests")
	flags.String("encoding", "", "Default character encoding")
	flags.Bool("commit", false, "Commit every successful download right away")
	flags.Int64("max-size", 0, "Maximum download size in bytes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a := fromContext(cmd.Context())

	remote, err := newRemote(a.cfg, a.logger)
	if err != nil {
		return err
	}
	p, err := newProxy(a.cfg, a.logger)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		Addr:   a.cfg.Server.Addr,
		Remote: remote,
		Proxy:  p,
		Logger: a.logger,
	})
	return srv.Serve(cmd.Context())
}
