package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memgate/memgate/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "task [description]",
		Short: "Assemble a context bundle for a task",
		Long:  "Retrieve a type-balanced bundle of memories for a task, grouped by memory type under per-type quotas.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTask,
	}

	cmd.Flags().StringP("client", "c", "", "Client id to retrieve as (required)")
	cmd.Flags().StringP("branch", "b", "", "Restrict to a branch subtree")
	cmd.Flags().StringSlice("quota", nil, "Per-type quota override, e.g. semantic=6 (repeatable)")

	RootCmd.AddCommand(cmd)
}

func runTask(cmd *cobra.Command, args []string) {
	clientID, _ := cmd.Flags().GetString("client")
	branch, _ := cmd.Flags().GetString("branch")
	quotaFlags, _ := cmd.Flags().GetStringSlice("quota")
	task := strings.Join(args, " ")

	svc, s, cfg, err := openService()
	if err != nil {
		exitErr("open gateway", err)
	}
	defer s.Close()

	quotas, err := cfg.BundleQuotas()
	if err != nil {
		exitErr("load quotas", err)
	}
	for _, q := range quotaFlags {
		typ, n, err := parseQuota(q)
		if err != nil {
			exitErr("parse quota", err)
		}
		quotas[typ] = n
	}

	client, err := resolveClient(cmd.Context(), s, clientID)
	if err != nil {
		exitErr("resolve client", err)
	}

	b, err := svc.RetrieveForTask(cmd.Context(), client, task, branch, quotas)
	if err != nil {
		exitErr("retrieve for task", err)
	}
	printJSON(b)
}

func parseQuota(s string) (model.MemoryType, int, error) {
	typ, val, ok := strings.Cut(s, "=")
	if !ok {
		return "", 0, errQuotaFormat(s)
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return "", 0, errQuotaFormat(s)
	}
	return model.MemoryType(typ), n, nil
}

func errQuotaFormat(s string) error {
	return fmt.Errorf("%w: quota %q, want type=N", model.ErrInvalidArgument, s)
}
