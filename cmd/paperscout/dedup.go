package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jyozhou/paperscout/internal/store"
	"github.com/jyozhou/paperscout/pkg/types"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Remove duplicate paper rows sharing a title",
	Long: `Dedup finds papers with identical titles (case-insensitive) and removes
all but one row per title, preferring the row with an arXiv ID and the
earliest created_at. By default only the plan is printed; pass --apply to
delete.`,
	RunE: runDedup,
}

func init() {
	dedupCmd.Flags().Bool("apply", false, "delete duplicate rows instead of printing the plan")

	rootCmd.AddCommand(dedupCmd)
}

func runDedup(cmd *cobra.Command, args []string) error {
	st, err := store.Open(types.StoreConfig{DBPath: dbPath(cmd)})
	if err != nil {
		return err
	}
	defer st.Close()

	apply, _ := cmd.Flags().GetBool("apply")
	_, err = st.DeduplicateTitles(cmd.Context(), apply, os.Stdout)
	return err
}
