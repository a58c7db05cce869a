package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kindredlabs/recall/internal/memory"
	"github.com/kindredlabs/recall/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [content]",
		Short: "Store content as memory chunks",
		Long:  "Clean, chunk, classify, embed, and store content. Content can be a positional arg or piped via stdin.",
		Run:   runIngest,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (required)")
	cmd.Flags().StringP("scope", "s", "default", "Scope id (companion or workspace)")
	cmd.Flags().String("source", "text", "Source type: text, voice, photo, chat, document")
	cmd.Flags().String("mime", "", "MIME type of the content; overrides --source when set")
	cmd.Flags().StringP("retention", "r", "long_term", "Retention policy: short_term, mid_term, long_term")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	scope, _ := cmd.Flags().GetString("scope")
	source, _ := cmd.Flags().GetString("source")
	mime, _ := cmd.Flags().GetString("mime")
	retention, _ := cmd.Flags().GetString("retention")

	// Get content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("ingest", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	sourceType := model.SourceType(source)
	if mime != "" {
		sourceType = model.SourceTypeForMIME(mime)
	}

	m, _, closer, err := openMemory()
	if err != nil {
		exitErr("open memory", err)
	}
	defer closer()

	res, err := m.Ingest(cmd.Context(), memory.IngestParams{
		OwnerID:   owner,
		ScopeID:   scope,
		Content:   content,
		Source:    sourceType,
		Retention: model.RetentionPolicy(retention),
	})
	if err != nil {
		exitErr("ingest", err)
	}

	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}
