package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories as a client",
		Long:  "Rank the memories visible to a client against a free-text query.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("client", "c", "", "Client id to search as (required)")
	cmd.Flags().IntP("limit", "l", 10, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	clientID, _ := cmd.Flags().GetString("client")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	svc, s, _, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	client, err := resolveClient(cmd.Context(), s, clientID)
	if err != nil {
		exitErr("resolve client", err)
	}

	resp, err := svc.Search(cmd.Context(), client, query, limit)
	if err != nil {
		exitErr("search", err)
	}

	if len(resp.Results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(resp.Results)
}
