package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/model"
)

var (
	linkRel    string
	linkRemove bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "link [from-id] [to-id]",
		Short: "Link two memories",
		Long:  "Add a directed relation from one memory to another, or remove it with --rm.\nRelations are free-form; \"mentions\" and \"contradicts\" are the common ones.",
		Args:  cobra.ExactArgs(2),
		Run:   runLink,
	}
	cmd.Flags().StringVarP(&linkRel, "rel", "r", "", "relation name (required)")
	cmd.Flags().BoolVar(&linkRemove, "rm", false, "remove the relation instead of adding it")
	cmd.MarkFlagRequired("rel")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	from, to := args[0], args[1]
	if from == to {
		exitErr("link", fmt.Errorf("a memory cannot link to itself"))
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if !linkRemove {
		if _, err := s.GetMemory(ctx, to); err != nil {
			exitErr("link target", err)
		}
	}

	out, err := s.UpdateMemory(ctx, from, func(m *model.Memory) error {
		if linkRemove {
			kept := m.Links[:0]
			for _, l := range m.Links {
				if l.Rel != linkRel || l.To != to {
					kept = append(kept, l)
				}
			}
			m.Links = kept
			return nil
		}
		for _, l := range m.Links {
			if l.Rel == linkRel && l.To == to {
				return nil
			}
		}
		m.Links = append(m.Links, model.Link{Rel: linkRel, To: to})
		return nil
	})
	if err != nil {
		exitErr("link", err)
	}
	printJSON(out)
}
