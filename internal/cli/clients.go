package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List registered clients",
		Args:  cobra.NoArgs,
		Run:   runClients,
	}

	register := &cobra.Command{
		Use:   "register [file]",
		Short: "Register or update a client from JSON",
		Long:  "Read a client definition from a JSON file (or stdin with -) and upsert it.",
		Args:  cobra.ExactArgs(1),
		Run:   runClientRegister,
	}
	cmd.AddCommand(register)

	disable := &cobra.Command{
		Use:   "disable [client-id]",
		Short: "Disable a client",
		Args:  cobra.ExactArgs(1),
		Run:   runClientSetEnabled(false),
	}
	cmd.AddCommand(disable)

	enable := &cobra.Command{
		Use:   "enable [client-id]",
		Short: "Enable a client",
		Args:  cobra.ExactArgs(1),
		Run:   runClientSetEnabled(true),
	}
	cmd.AddCommand(enable)

	RootCmd.AddCommand(cmd)
}

func runClients(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	list, err := s.ListClients(cmd.Context())
	if err != nil {
		exitErr("list clients", err)
	}

	if len(list) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(list)
}

func runClientRegister(cmd *cobra.Command, args []string) {
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

	var c model.Client
	if err := json.Unmarshal(data, &c); err != nil {
		exitErr("parse client", err)
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.PutClient(cmd.Context(), &c); err != nil {
		exitErr("register client", err)
	}
	fmt.Printf("Registered %s\n", c.ID)
}

func runClientSetEnabled(enabled bool) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		s, _, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		c, err := s.GetClient(cmd.Context(), args[0])
		if err != nil {
			exitErr("get client", err)
		}
		c.Enabled = enabled
		if err := s.PutClient(cmd.Context(), c); err != nil {
			exitErr("update client", err)
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Printf("Client %s %s\n", c.ID, state)
	}
}
