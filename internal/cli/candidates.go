package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List the curation inbox",
		Long:  "List proposed candidates awaiting a decision, newest first.",
		Args:  cobra.NoArgs,
		Run:   runCandidates,
	}

	cmd.Flags().StringP("branch", "b", "", "Filter by branch subtree")
	cmd.Flags().String("min-sensitivity", "", "Only candidates at or above this sensitivity (low|medium|high)")

	RootCmd.AddCommand(cmd)
}

func runCandidates(cmd *cobra.Command, args []string) {
	branch, _ := cmd.Flags().GetString("branch")
	minSens, _ := cmd.Flags().GetString("min-sensitivity")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	list, err := s.ListCandidates(cmd.Context(), store.CandidateFilter{
		BranchPrefix:   branch,
		MinSensitivity: model.Sensitivity(minSens),
	})
	if err != nil {
		exitErr("list candidates", err)
	}

	if len(list) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(list)
}
