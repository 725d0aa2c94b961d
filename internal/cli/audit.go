package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent curation actions",
		Args:  cobra.NoArgs,
		Run:   runAudit,
	}

	cmd.Flags().IntP("limit", "l", 50, "Max events")

	RootCmd.AddCommand(cmd)
}

func runAudit(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	events, err := s.ListAudit(cmd.Context(), limit)
	if err != nil {
		exitErr("list audit", err)
	}

	if len(events) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(events)
}
