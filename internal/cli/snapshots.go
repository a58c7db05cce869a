package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List saved context snapshots",
		Long:  "List the summaries persisted when context windows were cleared.",
		Run:   runSnapshots,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (required)")
	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runSnapshots(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	snaps, err := s.ListSnapshots(cmd.Context(), owner)
	if err != nil {
		exitErr("snapshots", err)
	}

	if len(snaps) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(snaps, "", "  ")
	fmt.Println(string(b))
}
