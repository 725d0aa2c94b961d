package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo dataset",
		Long:  "Insert a small demo dataset: a handful of memories, pending candidates, and clients.",
		Args:  cobra.NoArgs,
		Run:   runSeed,
	}

	RootCmd.AddCommand(cmd)
}

func runSeed(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Seed(cmd.Context()); err != nil {
		exitErr("seed", err)
	}
	fmt.Println("Seeded demo data")
}
