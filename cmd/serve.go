package cmd

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fetchkit/fetchd/internal/download"
	"github.com/fetchkit/fetchd/internal/engine"
	"github.com/fetchkit/fetchd/internal/history"
	"github.com/fetchkit/fetchd/internal/output"
	"github.com/fetchkit/fetchd/internal/server"
	"github.com/fetchkit/fetchd/internal/settings"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download service HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		log := output.GetLogger("serve")
		cfg, err := settings.Load(settingsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", settingsPath).Msg("Could not load settings")
		}
		if err := os.MkdirAll(cfg.DownloadDir(), 0755); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.DownloadDir()).Msg("Could not create download directory")
		}
		eng, err := engine.NewYTDLP()
		if err != nil {
			log.Fatal().Err(err).Msg("Could not initialize download engine")
		}
		hist := history.New(filepath.Join(cfg.DownloadDir(), "history.jsonl"))
		svc := download.NewService(eng, cfg, hist)
		srv := &server.Server{
			Service:  svc,
			Settings: cfg,
			History:  hist,
			AdminKey: os.Getenv("FETCHD_ADMIN_KEY"),
		}
		log.Info().Str("addr", listenAddr).Msg("API listening")
		if err := http.ListenAndServe(listenAddr, srv.Router()); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
