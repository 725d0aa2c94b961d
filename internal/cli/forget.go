package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [memory-id]",
		Short: "Tombstone a memory",
		Long:  "Mark a memory as forgotten. The row is kept for audit but hidden from retrieval.",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	svc, s, _, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	if err := svc.Forget(cmd.Context(), args[0]); err != nil {
		exitErr("forget", err)
	}
	fmt.Printf("Forgot %s\n", args[0])
}
