package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Long:  "List memories, newest first. This is the curator's view and bypasses client scopes.",
		Args:  cobra.NoArgs,
		Run:   runList,
	}

	cmd.Flags().StringP("branch", "b", "", "Filter by branch subtree")
	cmd.Flags().StringP("type", "t", "", "Filter by memory type")
	cmd.Flags().IntP("limit", "l", 50, "Max results")
	cmd.Flags().Bool("all", false, "Include tombstoned memories")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	branch, _ := cmd.Flags().GetString("branch")
	typ, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	list, err := s.ListMemories(cmd.Context(), store.ListParams{
		BranchPrefix:      branch,
		Type:              model.MemoryType(typ),
		IncludeTombstoned: all,
		Limit:             limit,
	})
	if err != nil {
		exitErr("list memories", err)
	}

	if len(list) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(list)
}
