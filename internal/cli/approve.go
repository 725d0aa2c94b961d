package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "approve [candidate-id]",
		Short: "Approve a candidate",
		Long:  "Approve a proposed candidate, creating a new memory or merging into its update target.",
		Args:  cobra.ExactArgs(1),
		Run:   runApprove,
	}

	RootCmd.AddCommand(cmd)
}

func runApprove(cmd *cobra.Command, args []string) {
	svc, s, _, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	m, err := svc.Approve(cmd.Context(), args[0])
	if err != nil {
		exitErr("approve", err)
	}
	printJSON(m)
}
