package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kindredlabs/recall/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from a JSON export",
		Long:  "Import chunks from a previous export. Duplicates are skipped. Reads a file or stdin.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var data []byte
	var err error

	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var chunks []model.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		exitErr("parse export", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.ImportChunks(cmd.Context(), chunks)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf("imported %d chunks (%d skipped)\n", n, len(chunks)-n)
}
