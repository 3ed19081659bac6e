package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/relation"
	"github.com/roach88/soqlkit/internal/soql"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Query   QueryFlags
	Session SessionOptions
	First   bool
	Last    bool
}

// QueryResult holds the records a query returned.
type QueryResult struct {
	Entity  string      `json:"entity"`
	SOQL    string      `json:"soql"`
	Records []ir.Record `json:"records"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [entities]",
		Short: "Run a query against the remote object store",
		Long: `Compile a query over declared entities and run it against the remote
object store configured in soqlkit.yaml.

With a journal, every remote call is recorded in a new session. With
--replay, calls are answered from a recorded session instead and no
network access happens.

Examples:
  soqlkit query --from Account --where BillingCity=Paris
  soqlkit query --from Account --first --journal ./soqlkit.db
  soqlkit query --from Account --replay 0191b2c3-... --journal ./soqlkit.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	opts.Query.register(cmd)
	opts.Session.register(cmd)
	cmd.Flags().BoolVar(&opts.First, "first", false, "return the first record ordered by Id")
	cmd.Flags().BoolVar(&opts.Last, "last", false, "return the last record ordered by Id")
	cmd.MarkFlagsMutuallyExclusive("first", "last")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
	}
	catalog, err := loadCatalog(cfg, args, formatter)
	if err != nil {
		return err
	}
	rel, err := buildQuery(catalog, &opts.Query, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "invalid query", err)
	}

	session, err := openSession(ctx, cfg, &opts.Session, "query "+rel.Entity().Name)
	if err != nil {
		return err
	}
	defer session.Close()

	compiler := soql.NewCompiler(nil)
	runner := relation.NewRunner(session.Client, compiler, catalog)

	switch {
	case opts.First:
		rel = rel.FirstScope()
	case opts.Last:
		rel = rel.LastScope()
	}

	result := QueryResult{Entity: rel.Entity().Name, Records: []ir.Record{}}
	result.SOQL, err = rel.ToSOQL(compiler)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompile, "compiling query", err)
	}
	formatter.VerboseLog("SOQL: %s", result.SOQL)

	records, err := runner.All(ctx, rel)
	if err != nil {
		return formatter.Fail(ExitFailure, remoteErrorCode(err), "query failed", err)
	}
	result.Records = append(result.Records, records...)

	if formatter.JSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, Session: session.ID})
	}
	return outputQueryText(formatter, result, session.ID)
}

func outputQueryText(formatter *OutputFormatter, result QueryResult, session string) error {
	w := formatter.Writer
	for _, rec := range result.Records {
		line, err := ir.MarshalCanonical(rec.Fields)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(line))
	}
	fmt.Fprintf(w, "%d record(s)\n", len(result.Records))
	if session != "" {
		fmt.Fprintf(w, "session: %s\n", session)
	}
	return nil
}

// rawValue renders an IR value the way records render their fields.
func rawValue(v ir.IRValue) json.RawMessage {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
