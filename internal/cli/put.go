package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [file]",
		Short: "Upsert a memory from JSON",
		Long:  "Read a memory from a JSON file (or stdin with -) and write it directly,\nbypassing the curation inbox. Meant for the curator, not for agents.",
		Args:  cobra.ExactArgs(1),
		Run:   runPut,
	}

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitErr("read input", err)
	}

	var m model.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		exitErr("parse memory", err)
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if m.ID == "" {
		m.ID = s.NewID()
	}
	out, err := s.UpsertMemory(cmd.Context(), &m)
	if err != nil {
		exitErr("put memory", err)
	}
	printJSON(out)
}
