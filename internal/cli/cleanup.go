package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired memories",
		Long:  "Hard-delete chunks whose retention window has passed. Expired chunks are already invisible to retrieval; this reclaims the space.",
		Run:   runCleanup,
	}

	RootCmd.AddCommand(cmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	m, _, closer, err := openMemory()
	if err != nil {
		exitErr("open memory", err)
	}
	defer closer()

	n, err := m.PurgeExpired(cmd.Context())
	if err != nil {
		exitErr("cleanup", err)
	}

	fmt.Printf("purged %d expired chunks\n", n)
}
