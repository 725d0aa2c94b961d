package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [memory-id]",
		Short: "Fetch a single memory",
		Long:  "Fetch one memory by id, including tombstoned ones. This is the curator's view and bypasses client scopes.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := s.GetMemory(cmd.Context(), args[0])
	if err != nil {
		exitErr("get memory", err)
	}
	printJSON(m)
}
