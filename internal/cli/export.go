package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an owner's memories as JSON",
		Run:   runExport,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (required)")
	cmd.Flags().StringP("scope", "s", "", "Narrow to one scope")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	scope, _ := cmd.Flags().GetString("scope")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	chunks, err := s.ExportOwner(cmd.Context(), owner, scope)
	if err != nil {
		exitErr("export", err)
	}

	if len(chunks) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(chunks, "", "  ")
	fmt.Println(string(b))
}
