package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	promoter "github.com/stacklok/contract-promoter/internal/app"
	"github.com/stacklok/contract-promoter/internal/promotion"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/seed"
	"github.com/stacklok/contract-promoter/internal/store"
)

func newPromoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promote <id | slug@version>",
		Short: "Promote a draft record",
		Long: `Promote a draft record to its final release and print the summary of the
final record.

The draft is named by its id or as slug@version. The promotion is attributed to
--actor, an actor id or slug@version. Without --actor, the actor of --session
is used.

Examples:
  contract-promoter promote card-x@1.0.2-beta1+rev02 --config config.yaml --actor user-jdoe@1.0.0
  contract-promoter promote 0b9f6f0e-3c1d-4c55-a1de-6f1d9d1c7a10 --config config.yaml --session $TOKEN`,
		Args: cobra.ExactArgs(1),
		RunE: runPromote,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().String("session", "", "Session token used to access the store")
	cmd.Flags().String("actor", "", "Actor performing the promotion (id or slug@version)")
	cmd.Flags().String("originator", "", "Identifier of the request that triggered the promotion")
	cmd.Flags().String("seed", "", "Seed document applied before promoting")
	return cmd
}

func runPromote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v, err := newViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	comps, err := promoter.NewComponents(ctx, promoter.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer func() {
		_ = comps.Close(context.Background())
	}()

	if path := v.GetString("seed"); path != "" {
		if _, err := applySeed(ctx, comps, path); err != nil {
			return err
		}
	}

	session := v.GetString("session")
	actor, err := resolveActor(ctx, comps.Store, session, v.GetString("actor"))
	if err != nil {
		return err
	}

	req := promotion.Request{Actor: actor, Originator: v.GetString("originator")}

	var summary *record.Summary
	if ref := args[0]; strings.Contains(ref, "@") {
		var draft *record.Record
		draft, err = seed.FindRecord(ctx, comps.Store, session, ref)
		if err != nil {
			return err
		}
		summary, err = comps.Promotion.PromoteDraft(ctx, session, draft, req)
	} else {
		summary, err = comps.Promotion.PromoteRecord(ctx, session, ref, req)
	}
	if err != nil {
		return fmt.Errorf("promotion of %s failed: %w", args[0], err)
	}

	return writeJSON(cmd.OutOrStdout(), summary)
}

// resolveActor returns the actor id named by actor, or the actor of session
// when actor is empty
func resolveActor(ctx context.Context, s store.Store, session, actor string) (string, error) {
	switch {
	case strings.Contains(actor, "@"):
		rec, err := seed.FindRecord(ctx, s, session, actor)
		if err != nil {
			return "", fmt.Errorf("failed to resolve actor: %w", err)
		}
		return rec.ID, nil
	case actor != "":
		return actor, nil
	case session == "":
		return "", errors.New("an actor is required: set --actor or --session")
	}

	rec, err := s.GetRecord(ctx, session, session)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	id, ok := store.SessionActor(rec, time.Now())
	if !ok {
		return "", errors.New("session is invalid or expired")
	}
	return id, nil
}
