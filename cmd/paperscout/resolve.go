package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/jyozhou/paperscout/internal/httputil"
	"github.com/jyozhou/paperscout/internal/resolve"
	"github.com/jyozhou/paperscout/internal/store"
	"github.com/jyozhou/paperscout/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [title]",
	Short: "Resolve listing titles to canonical paper records",
	Long: `Resolve maps paper titles to canonical records with arXiv IDs and PDF
links, querying arXiv first and OpenAlex second. Three input modes:

  resolve "Some Paper Title"     resolve one title, print the record
  resolve --refs refs.yaml       resolve a YAML file of collected refs
  resolve --from-db              resolve pending titles from the database

Database mode advances each row's status: confirmed matches become
TobeDownloaded, misses become detailFailed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("url", "", "listing URL for the title (may embed an arXiv id)")
	resolveCmd.Flags().String("refs", "", "YAML file of refs to resolve")
	resolveCmd.Flags().Bool("from-db", false, "resolve pending titles from the database")
	resolveCmd.Flags().Int("limit", 0, "cap on database rows resolved per run")
	resolveCmd.Flags().String("out", "", "write resolved records to this YAML file")
	resolveCmd.Flags().Float64("min-similarity", 0, "similarity threshold (default 0.8)")
	resolveCmd.Flags().Int("max-results", 0, "candidates requested per backend (default 10)")
	resolveCmd.Flags().Duration("cooldown", 0, "sleep-and-retry window after arXiv throttling (0 aborts)")
	resolveCmd.Flags().Duration("timeout", 30*time.Second, "HTTP request timeout")
	resolveCmd.Flags().String("openalex-email", "", "mailto address for OpenAlex polite pool")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig(cmd)
	client := httputil.NewClient(cfg.Timeout)
	resolver := &resolve.Resolver{
		Primary:   &resolve.ArxivBackend{Client: client},
		Secondary: &resolve.OpenAlexBackend{Client: client},
	}

	refsPath, _ := cmd.Flags().GetString("refs")
	fromDB, _ := cmd.Flags().GetBool("from-db")

	switch {
	case len(args) == 1:
		url, _ := cmd.Flags().GetString("url")
		return resolveSingle(cmd, resolver, args[0], url, cfg)
	case refsPath != "":
		return resolveRefsFile(cmd, resolver, refsPath, cfg)
	case fromDB:
		return resolveFromDB(cmd, resolver, cfg)
	default:
		return fmt.Errorf("provide a title, --refs, or --from-db")
	}
}

func resolveConfig(cmd *cobra.Command) types.ResolveConfig {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	minSim, _ := cmd.Flags().GetFloat64("min-similarity")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	cooldown, _ := cmd.Flags().GetDuration("cooldown")
	email, _ := cmd.Flags().GetString("openalex-email")

	return types.ResolveConfig{
		HTTPConfig:        types.HTTPConfig{Timeout: timeout, UserAgent: defaultUserAgent},
		MaxResults:        maxResults,
		MinSimilarity:     minSim,
		OpenAlexEmail:     secretDefault("openalex-email", email),
		RateLimitCooldown: cooldown,
	}
}

func resolveSingle(cmd *cobra.Command, resolver *resolve.Resolver, title, url string, cfg types.ResolveConfig) error {
	paper, err := resolver.Resolve(cmd.Context(), title, url, cfg, os.Stderr)
	if err != nil {
		return err
	}
	if paper == nil {
		return fmt.Errorf("no confident match for %q", title)
	}
	return writeResolved(cmd, []types.ResolvedPaper{*paper})
}

func resolveRefsFile(cmd *cobra.Command, resolver *resolve.Resolver, refsPath string, cfg types.ResolveConfig) error {
	data, err := os.ReadFile(refsPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", refsPath, err)
	}
	var refs []types.PaperRef
	if err := yaml.Unmarshal(data, &refs); err != nil {
		return fmt.Errorf("parsing %s: %w", refsPath, err)
	}

	result, err := resolve.ResolveBatch(cmd.Context(), resolver, refs, cfg, os.Stderr)
	if err != nil {
		return err
	}
	return writeResolved(cmd, result.Resolved)
}

func resolveFromDB(cmd *cobra.Command, resolver *resolve.Resolver, cfg types.ResolveConfig) error {
	st, err := store.Open(types.StoreConfig{DBPath: dbPath(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	papers, err := st.PapersByStatus(cmd.Context(), types.StatusPending, limit)
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		fmt.Println("No pending titles")
		return nil
	}

	resolved, failed := 0, 0
	for _, row := range papers {
		ref := types.PaperRef{Title: row.Title, URL: row.URL, Source: row.Source}
		paper, err := resolve.ResolveRef(cmd.Context(), resolver, ref, cfg, os.Stderr)
		if err != nil {
			if resolve.IsRateLimit(err) || cmd.Context().Err() != nil {
				fmt.Printf("Resolved %d of %d pending titles (%d failed) before stopping\n",
					resolved, len(papers), failed)
				return err
			}
			paper = nil
		}
		if paper == nil {
			failed++
			if markErr := st.MarkStatus(cmd.Context(), row.ID, types.StatusDetailFailed, "no confident match"); markErr != nil {
				return markErr
			}
			continue
		}

		paper.Source = row.Source
		if err := st.SaveResolved(cmd.Context(), row.ID, *paper); err != nil {
			return err
		}
		resolved++
	}

	fmt.Printf("Resolved %d of %d pending titles (%d failed)\n", resolved, len(papers), failed)
	return nil
}

// writeResolved prints records as YAML to stdout or the --out file.
func writeResolved(cmd *cobra.Command, papers []types.ResolvedPaper) error {
	data, err := yaml.Marshal(papers)
	if err != nil {
		return fmt.Errorf("encoding resolved papers: %w", err)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("Wrote %d resolved papers to %s\n", len(papers), outPath)
	return nil
}
