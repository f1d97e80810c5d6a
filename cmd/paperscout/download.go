package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jyozhou/paperscout/internal/download"
	"github.com/jyozhou/paperscout/internal/httputil"
	"github.com/jyozhou/paperscout/internal/store"
	"github.com/jyozhou/paperscout/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download PDFs for resolved papers",
	Long: `Download fetches the PDF for every paper in TobeDownloaded status,
writing <arxiv-id>.pdf files into the PDF directory. Successful papers
advance to processed; failures are marked downloadFailed and skipped on
the next run unless retried.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Duration("timeout", 60*time.Second, "HTTP request timeout")
	downloadCmd.Flags().Duration("delay", 0, "delay between consecutive downloads (default 1s)")
	downloadCmd.Flags().String("pdf-dir", "", "directory for downloaded PDFs (default data/pdfs)")
	downloadCmd.Flags().Int("limit", 0, "cap on papers downloaded per run")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	delay, _ := cmd.Flags().GetDuration("delay")
	pdfDir, _ := cmd.Flags().GetString("pdf-dir")
	limit, _ := cmd.Flags().GetInt("limit")
	if pdfDir == "" {
		pdfDir = viper.GetString("download.pdf_dir")
	}

	cfg := types.DownloadConfig{
		HTTPConfig:    types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent},
		PDFDir:        pdfDir,
		DownloadDelay: delay,
	}

	st, err := store.Open(types.StoreConfig{DBPath: dbPath(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	papers, err := st.PapersByStatus(cmd.Context(), types.StatusToDownload, limit)
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		fmt.Println("No papers to download")
		return nil
	}

	client := httputil.NewClient(cfg.Timeout)
	summary, err := download.Batch(cmd.Context(), client, st, papers, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed to download", summary.Failed)
	}
	return nil
}
