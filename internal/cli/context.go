package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kindredlabs/recall/internal/contextwindow"
	"github.com/kindredlabs/recall/internal/tokens"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Assemble a context window for a message",
		Long: "Retrieve relevant memories for the message and format them with the\n" +
			"conversation into a token-budgeted prompt.",
		Args: cobra.MinimumNArgs(1),
		Run:  runContext,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (required)")
	cmd.Flags().StringP("scope", "s", "default", "Scope id")
	cmd.Flags().String("session", "", "Session id (empty starts a new session)")
	cmd.Flags().IntP("budget", "b", contextwindow.DefaultBudget, "Max tokens in the window")
	cmd.Flags().IntP("limit", "l", contextwindow.DefaultRetrieveLimit, "Memories retrieved per message")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	scope, _ := cmd.Flags().GetString("scope")
	session, _ := cmd.Flags().GetString("session")
	budget, _ := cmd.Flags().GetInt("budget")
	limit, _ := cmd.Flags().GetInt("limit")
	message := strings.Join(args, " ")

	m, st, closer, err := openMemory()
	if err != nil {
		exitErr("open memory", err)
	}
	defer closer()

	mgr := contextwindow.NewManager(m, st, tokens.NewFromEnv(),
		contextwindow.WithBudget(budget),
		contextwindow.WithRetrieveLimit(limit),
		contextwindow.WithLogger(newLogger()))

	result, err := mgr.Integrate(cmd.Context(), owner, scope, session, message)
	if err != nil {
		exitErr("context", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
