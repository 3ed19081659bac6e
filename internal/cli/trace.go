package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Kind    string // optional - filter to one call kind
}

// SessionSummary is one journaled session.
type SessionSummary struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"started_at"`
	Calls     int       `json:"calls"`
}

// TraceEvent is one journaled remote call.
type TraceEvent struct {
	Seq       int64       `json:"seq"`
	Kind      string      `json:"kind"`
	SObject   string      `json:"sobject,omitempty"`
	SOQL      string      `json:"soql,omitempty"`
	Payload   ir.IRObject `json:"payload,omitempty"`
	Rows      int         `json:"rows"`
	CreatedID string      `json:"created_id,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// TraceResult holds the calls of one session.
type TraceResult struct {
	Session SessionSummary `json:"session"`
	Calls   []TraceEvent   `json:"calls"`
	Stats   TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for a session.
type TraceStats struct {
	Queries int `json:"queries"`
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Failed  int `json:"failed"`
	Rows    int `json:"rows"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session]",
		Short: "Show what was sent to the remote system",
		Long: `Show the remote calls journaled in a session.

Without a session argument, lists the journal's sessions newest first.
The session "latest" names the most recently started one.

Examples:
  soqlkit trace --journal ./soqlkit.db
  soqlkit trace latest --journal ./soqlkit.db
  soqlkit trace 0191b2c3-... --journal ./soqlkit.db --kind query --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := ""
			if len(args) > 0 {
				session = args[0]
			}
			return runTrace(opts, session, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (default: config journal)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one call kind (query|create|update)")

	return cmd
}

func runTrace(opts *TraceOptions, sessionID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	switch opts.Kind {
	case "", string(store.KindQuery), string(store.KindCreate), string(store.KindUpdate):
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be query, create or update", opts.Kind))
	}

	journal := opts.Journal
	if journal == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
		}
		journal = cfg.Journal
	}
	if journal == "" {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "no journal given and none configured", nil)
	}
	// Opening a missing path would create an empty journal.
	if _, err := os.Stat(journal); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("journal not found: %s", journal), nil)
	}

	st, err := store.Open(journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	if sessionID == "" {
		return listSessions(ctx, st, formatter)
	}

	var sess store.Session
	if sessionID == "latest" {
		sess, err = st.LatestSession(ctx)
	} else {
		sess, err = st.ReadSession(ctx, sessionID)
	}
	if errors.Is(err, store.ErrSessionNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	calls, err := st.ReadCalls(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read calls", err)
	}

	result := TraceResult{
		Session: summarize(sess),
		Calls:   buildTimeline(calls, opts.Kind),
	}
	result.Stats = traceStats(calls)

	if formatter.JSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, Session: sess.ID})
	}
	return outputTraceText(formatter, result)
}

func listSessions(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	summaries := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = summarize(s)
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %s  %d call(s)  %s\n", s.ID, s.StartedAt.Format(time.RFC3339), s.Calls, s.Label)
	}
	return nil
}

func summarize(s store.Session) SessionSummary {
	return SessionSummary{ID: s.ID, Label: s.Label, StartedAt: s.StartedAt, Calls: s.CallCount}
}

// buildTimeline converts journaled calls to trace events, keeping only
// calls of kind when it is set.
func buildTimeline(calls []store.Call, kind string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, c := range calls {
		if kind != "" && string(c.Kind) != kind {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:       c.Seq,
			Kind:      string(c.Kind),
			SObject:   c.SObject,
			SOQL:      c.SOQL,
			Payload:   c.Payload,
			Rows:      len(c.Records),
			CreatedID: c.CreatedID,
			Error:     c.Err,
		})
	}
	return timeline
}

// traceStats counts every call of the session, regardless of filters.
func traceStats(calls []store.Call) TraceStats {
	var stats TraceStats
	for _, c := range calls {
		switch c.Kind {
		case store.KindQuery:
			stats.Queries++
		case store.KindCreate:
			stats.Creates++
		case store.KindUpdate:
			stats.Updates++
		}
		if c.Failed() {
			stats.Failed++
		}
		stats.Rows += len(c.Records)
	}
	return stats
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Session: %s (%s)\n", result.Session.ID, result.Session.Label)
	fmt.Fprintf(w, "Started: %s\n\n", result.Session.StartedAt.Format(time.RFC3339))

	if len(result.Calls) == 0 {
		fmt.Fprintln(w, "No calls.")
	}
	for _, c := range result.Calls {
		var line strings.Builder
		fmt.Fprintf(&line, "[%d] %-6s ", c.Seq, c.Kind)
		if c.Kind == string(store.KindQuery) {
			fmt.Fprintf(&line, "%s -> %d row(s)", c.SOQL, c.Rows)
		} else {
			line.WriteString(c.SObject)
			if len(c.Payload) > 0 {
				payload, err := ir.MarshalCanonical(c.Payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(&line, " %s", payload)
			}
			if c.CreatedID != "" {
				fmt.Fprintf(&line, " -> %s", c.CreatedID)
			}
		}
		if c.Error != "" {
			fmt.Fprintf(&line, " ERROR: %s", c.Error)
		}
		fmt.Fprintln(w, line.String())
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d query, %d create, %d update, %d failed, %d row(s)\n",
		result.Stats.Queries, result.Stats.Creates, result.Stats.Updates, result.Stats.Failed, result.Stats.Rows)
	return nil
}
