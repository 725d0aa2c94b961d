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
		Use:   "ingest [file]",
		Short: "Propose a candidate from JSON",
		Long:  "Read a candidate from a JSON file (or stdin with -) and add it to the curation inbox.",
		Args:  cobra.ExactArgs(1),
		Run:   runIngest,
	}

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
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

	var c model.Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		exitErr("parse candidate", err)
	}

	svc, s, _, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	out, err := svc.Ingest(cmd.Context(), &c)
	if err != nil {
		exitErr("ingest", err)
	}
	printJSON(out)
}
