package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reject [candidate-id]",
		Short: "Reject a candidate",
		Long:  "Reject a proposed candidate. The memory set is left untouched.",
		Args:  cobra.ExactArgs(1),
		Run:   runReject,
	}

	RootCmd.AddCommand(cmd)
}

func runReject(cmd *cobra.Command, args []string) {
	svc, s, _, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	if err := svc.Reject(cmd.Context(), args[0]); err != nil {
		exitErr("reject", err)
	}
	fmt.Printf("Rejected %s\n", args[0])
}
