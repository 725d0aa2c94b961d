package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/curation"
	"github.com/memgate/memgate/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve [candidate-id]",
		Short: "Resolve a contradiction",
		Long:  "Settle a candidate's contradicts conflict by choosing which side survives.",
		Args:  cobra.ExactArgs(1),
		Run:   runResolve,
	}

	cmd.Flags().String("keep", "", "Which side to keep: existing, candidate, or both (required)")

	RootCmd.AddCommand(cmd)
}

func runResolve(cmd *cobra.Command, args []string) {
	keepFlag, _ := cmd.Flags().GetString("keep")

	keep := curation.Keep(keepFlag)
	switch keep {
	case curation.KeepExisting, curation.KeepCandidate, curation.KeepBoth:
	default:
		exitErr("resolve", fmt.Errorf("%w: --keep must be existing, candidate, or both", model.ErrInvalidArgument))
	}

	svc, s, _, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	m, err := svc.ResolveContradiction(cmd.Context(), args[0], keep)
	if err != nil {
		exitErr("resolve", err)
	}

	if m == nil {
		fmt.Printf("Resolved %s: kept existing memory\n", args[0])
		return
	}
	printJSON(m)
}
