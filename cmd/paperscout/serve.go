package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jyozhou/paperscout/internal/store"
	"github.com/jyozhou/paperscout/internal/web"
	"github.com/jyozhou/paperscout/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the paper viewer API",
	Long: `Serve starts a local HTTP server exposing the paper database as JSON
(/api/papers, /api/papers/{id}) and the downloaded artifacts (/pdf/{id},
/text/{id}). Runs until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("bind", "", "listen address (default 127.0.0.1:8080)")
	serveCmd.Flags().String("pdf-dir", "", "directory of downloaded PDFs (default data/pdfs)")
	serveCmd.Flags().String("text-dir", "", "directory of extracted text (default data/text)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	bind, _ := cmd.Flags().GetString("bind")
	pdfDir, _ := cmd.Flags().GetString("pdf-dir")
	textDir, _ := cmd.Flags().GetString("text-dir")
	if bind == "" {
		bind = viper.GetString("web.bind")
	}
	if pdfDir == "" {
		pdfDir = viper.GetString("download.pdf_dir")
	}
	if textDir == "" {
		textDir = viper.GetString("web.text_dir")
	}

	st, err := store.Open(types.StoreConfig{DBPath: dbPath(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := types.WebConfig{Bind: bind, PDFDir: pdfDir, TextDir: textDir}
	server := web.NewServer(st, cfg, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	server.Stop()
	return nil
}
