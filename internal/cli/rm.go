package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [chunk-id]",
		Short: "Delete memories",
		Long:  "Delete a single chunk by id, or every chunk for an owner with --all.",
		Run:   runRm,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (required)")
	cmd.Flags().StringP("scope", "s", "", "Narrow --all to one scope")
	cmd.Flags().Bool("all", false, "Delete all of the owner's memories")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	scope, _ := cmd.Flags().GetString("scope")
	all, _ := cmd.Flags().GetBool("all")

	if !all && len(args) == 0 {
		exitErr("rm", fmt.Errorf("a chunk id or --all is required"))
	}

	m, _, closer, err := openMemory()
	if err != nil {
		exitErr("open memory", err)
	}
	defer closer()

	if all {
		n, err := m.DeleteOwner(cmd.Context(), owner, scope)
		if err != nil {
			exitErr("rm", err)
		}
		fmt.Printf("deleted %d chunks\n", n)
		return
	}

	if err := m.Delete(cmd.Context(), owner, args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Println("deleted", args[0])
}
