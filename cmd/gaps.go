package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/gaps"
	"github.com/sells-group/disposight/internal/opportunity"
	"github.com/sells-group/disposight/internal/store"
)

var (
	gapsWatchlist string
	gapsLimit     int
	gapsJSON      bool
)

// watchlist is the operator-maintained coverage file: companies already
// being pursued plus optional explicit preferences.
type watchlist struct {
	CompanyIDs  []uuid.UUID   `json:"company_ids"`
	SignalTypes []string      `json:"signal_types,omitempty"`
	Preferences *gaps.Profile `json:"preferences,omitempty"`
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Surface opportunities the watchlist is missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		wl, err := readWatchlist(gapsWatchlist)
		if err != nil {
			return err
		}

		watched, watchedIDs := loadWatched(ctx, st, wl.CompanyIDs)
		profile := gaps.MergeExplicitPrefs(
			gaps.DeriveProfile(watched, wl.SignalTypes),
			wl.Preferences,
		)

		builder := opportunity.NewBuilder(st, cfg.Scoring.PricePerDevice, cfg.Scoring.MaxConcurrentCompanies)
		listed, err := builder.List(ctx, opportunity.Query{}, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "list opportunities")
		}

		matches, total := gaps.Detect(
			opportunity.GapCandidates(listed.Opportunities),
			watchedIDs, profile, gapsLimit, time.Now().UTC(),
		)

		if gapsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"matches": matches, "total": total})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "GAP\tDEAL\tSTATE\tINDUSTRY\tNEW\tREASONS")
		for _, m := range matches {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%v\t%s\n",
				m.GapScore, m.Candidate.DealScore, m.Candidate.HeadquartersState,
				m.Candidate.Industry, m.IsNew, strings.Join(m.MatchReasons, "; "),
			)
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "flush table")
		}

		fmt.Printf("\n%d coverage gaps (%d shown)\n", total, len(matches))
		return nil
	},
}

func readWatchlist(path string) (*watchlist, error) {
	if path == "" {
		return &watchlist{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read watchlist")
	}
	var wl watchlist
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, eris.Wrap(err, "parse watchlist")
	}
	return &wl, nil
}

// loadWatched resolves watchlist IDs to profile inputs. Unknown IDs are
// logged and skipped so a stale watchlist still produces gaps.
func loadWatched(ctx context.Context, st store.Store, ids []uuid.UUID) ([]gaps.WatchedCompany, map[uuid.UUID]bool) {
	watched := make([]gaps.WatchedCompany, 0, len(ids))
	watchedIDs := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		watchedIDs[id] = true
		company, err := st.GetCompany(ctx, id)
		if err != nil || company == nil {
			zap.L().Warn("gaps: watchlist company not found",
				zap.String("company_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		watched = append(watched, gaps.WatchedCompany{
			HeadquartersState: company.HeadquartersState,
			Industry:          company.Industry,
		})
	}
	return watched, watchedIDs
}

func init() {
	gapsCmd.Flags().StringVar(&gapsWatchlist, "watchlist", "", "watchlist JSON file")
	gapsCmd.Flags().IntVar(&gapsLimit, "limit", 10, "maximum gaps to surface")
	gapsCmd.Flags().BoolVar(&gapsJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(gapsCmd)
}
