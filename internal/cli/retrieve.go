package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kindredlabs/recall/internal/memory"
	"github.com/kindredlabs/recall/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Search memories by meaning",
		Long:  "Embed the query and return the owner's memories ranked by a blend of similarity and recency.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRetrieve,
	}

	cmd.Flags().StringP("owner", "o", "", "Owner id (required)")
	cmd.Flags().StringP("scope", "s", "", "Filter by scope")
	cmd.Flags().StringP("type", "t", "", "Filter by memory type: emotional, factual, conversational, experiential")
	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().String("since", "", "Only memories created at or after this RFC3339 time")
	cmd.Flags().String("until", "", "Only memories created at or before this RFC3339 time")

	cmd.MarkFlagRequired("owner")

	RootCmd.AddCommand(cmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")
	scope, _ := cmd.Flags().GetString("scope")
	memType, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	since, err := parseTimeFlag(cmd, "since")
	if err != nil {
		exitErr("retrieve", err)
	}
	until, err := parseTimeFlag(cmd, "until")
	if err != nil {
		exitErr("retrieve", err)
	}

	m, _, closer, err := openMemory()
	if err != nil {
		exitErr("open memory", err)
	}
	defer closer()

	results, err := m.Retrieve(cmd.Context(), memory.RetrieveParams{
		OwnerID:    owner,
		ScopeID:    scope,
		Query:      query,
		Limit:      limit,
		MemoryType: model.MemoryType(memType),
		Since:      since,
		Until:      until,
	})
	if err != nil {
		exitErr("retrieve", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}

func parseTimeFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s time %q: %w", name, v, err)
	}
	return t, nil
}
