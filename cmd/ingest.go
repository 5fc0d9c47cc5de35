package main

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/ingest"
	"github.com/sells-group/disposight/internal/model"
)

var (
	ingestFile   string
	ingestSource string
	ingestBulk   bool
)

// ingestLine is one normalized event as emitted by an external collector.
type ingestLine struct {
	CompanyName       string     `json:"company_name"`
	EventType         string     `json:"event_type"`
	EventDate         *time.Time `json:"event_date,omitempty"`
	Locations         []string   `json:"locations,omitempty"`
	EmployeesAffected *int       `json:"employees_affected,omitempty"`
	SourceURL         string     `json:"source_url,omitempty"`
	RawText           string     `json:"raw_text,omitempty"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load normalized events from a JSON-lines file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		events, err := readEvents(ingestFile, ingestSource)
		if err != nil {
			return err
		}

		gate := ingest.NewGate(st)
		if cfg.Ingest.MinAffectedEmployees > 0 {
			gate = ingest.NewGateWithThreshold(st, cfg.Ingest.MinAffectedEmployees)
		}

		var summary ingest.Summary
		if ingestBulk {
			summary, err = gate.IngestBulk(ctx, ingestSource, events)
		} else {
			summary, err = gate.Ingest(ctx, ingestSource, events)
		}
		if err != nil {
			return eris.Wrap(err, "ingest events")
		}

		zap.L().Info("ingest complete",
			zap.String("source", ingestSource),
			zap.String("summary", summary.String()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// readEvents parses a JSON-lines file into raw events tagged with sourceType.
// Blank lines are skipped; a malformed line fails the whole file.
func readEvents(path, sourceType string) ([]model.RawEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open events file")
	}
	defer f.Close() //nolint:errcheck

	var events []model.RawEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in ingestLine
		if err := json.Unmarshal(line, &in); err != nil {
			return nil, eris.Wrapf(err, "parse line %d", lineNo)
		}
		events = append(events, model.RawEvent{
			SourceType:        sourceType,
			CompanyName:       in.CompanyName,
			EventType:         in.EventType,
			EventDate:         in.EventDate,
			Locations:         in.Locations,
			EmployeesAffected: in.EmployeesAffected,
			SourceURL:         in.SourceURL,
			RawText:           in.RawText,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read events file")
	}
	return events, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "JSON-lines events file (required)")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source type to tag events with (required)")
	ingestCmd.Flags().BoolVar(&ingestBulk, "bulk", false, "use the store's bulk landing path when available")
	_ = ingestCmd.MarkFlagRequired("file")
	_ = ingestCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(ingestCmd)
}
