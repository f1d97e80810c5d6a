package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/jyozhou/paperscout/internal/collect"
	"github.com/jyozhou/paperscout/internal/httputil"
	"github.com/jyozhou/paperscout/internal/store"
	"github.com/jyozhou/paperscout/pkg/types"
)

const defaultUserAgent = "paperscout/0.1"

var collectCmd = &cobra.Command{
	Use:   "collect <venue> <year>",
	Short: "Collect accepted-paper titles for a conference edition",
	Long: `Collect fetches the accepted-paper listing of one conference edition from
DBLP (API first, rendered page as fallback) and stores the titles as
pending rows in the papers database. With --out the refs are written to a
YAML file instead.

Supported venues: ` + strings.Join(collect.Venues(), ", ") + `.`,
	Args: cobra.ExactArgs(2),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().Duration("timeout", 30*time.Second, "HTTP request timeout")
	collectCmd.Flags().Int("max-rows", 0, "cap on listing rows fetched (default 5000)")
	collectCmd.Flags().String("out", "", "write refs to this YAML file instead of the database")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	venue := strings.ToLower(args[0])
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[1])
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxRows, _ := cmd.Flags().GetInt("max-rows")
	outPath, _ := cmd.Flags().GetString("out")

	cfg := types.CollectConfig{
		HTTPConfig: types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent},
		MaxRows:    maxRows,
	}

	client := httputil.NewClient(cfg.Timeout)
	refs, err := collect.FetchVenue(cmd.Context(), client, venue, year, cfg, os.Stdout)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("no papers found for %s %d", venue, year)
	}

	if outPath != "" {
		data, err := yaml.Marshal(refs)
		if err != nil {
			return fmt.Errorf("encoding refs: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		fmt.Printf("Wrote %d refs to %s\n", len(refs), outPath)
		return nil
	}

	st, err := store.Open(types.StoreConfig{DBPath: dbPath(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	inserted, err := st.AddRefs(cmd.Context(), refs)
	if err != nil {
		return err
	}
	fmt.Printf("Collected %d titles from %s (%d new)\n",
		len(refs), collect.SourceLabel(venue, year), inserted)
	return nil
}
