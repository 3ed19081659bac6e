package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/aggregate"
	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/relation"
	"github.com/roach88/soqlkit/internal/soql"
)

// AggregateOptions holds flags for the aggregate command.
type AggregateOptions struct {
	*RootOptions
	Query    QueryFlags
	Session  SessionOptions
	Column   string
	Distinct bool
}

// AggregateOutput is the decoded result of an aggregate command.
type AggregateOutput struct {
	Entity string `json:"entity"`
	Op     string `json:"op"`

	// SOQL is empty when LIMIT 0 short-circuited the request.
	SOQL string `json:"soql,omitempty"`

	Value  json.RawMessage `json:"value,omitempty"`
	Groups []GroupOutput   `json:"groups,omitempty"`
}

// GroupOutput is one group of a grouped aggregate.
type GroupOutput struct {
	Key    []json.RawMessage `json:"key"`
	Value  json.RawMessage   `json:"value"`
	Entity *ir.Record        `json:"entity,omitempty"`
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregate <count|sum|avg|min|max> [entities]",
		Short: "Run an aggregate against the remote object store",
		Long: `Rewrite an aggregate over a query into the dialect's form, run it and
decode the result.

Without --group the result is a single value. With --group it is one value
per key; grouping by a belongs-to association also loads the related
records in one extra query.

Examples:
  soqlkit aggregate count --from Account
  soqlkit aggregate sum --column AnnualRevenue --from Account --group BillingCity
  soqlkit aggregate count --from Contact --group Account --journal ./soqlkit.db`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(opts, args[0], args[1:], cmd)
		},
	}

	opts.Query.register(cmd)
	opts.Session.register(cmd)
	cmd.Flags().StringVar(&opts.Column, "column", "", "aggregated column (default: all rows)")
	cmd.Flags().BoolVar(&opts.Distinct, "distinct", false, "aggregate distinct values")

	return cmd
}

func runAggregate(opts *AggregateOptions, op string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	req, err := aggregateRequest(op, opts.Column, opts.Distinct)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "invalid aggregate", err)
	}

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

	session, err := openSession(ctx, cfg, &opts.Session, fmt.Sprintf("aggregate %s %s", req.Op, rel.Entity().Name))
	if err != nil {
		return err
	}
	defer session.Close()

	compiler := soql.NewCompiler(nil)
	runner := relation.NewRunner(session.Client, compiler, catalog)
	normalizer := aggregate.New(session.Client, compiler, runner)

	output := AggregateOutput{Entity: rel.Entity().Name, Op: string(req.Op)}
	if output.SOQL, err = normalizer.Compile(rel, req); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompile, "compiling aggregate", err)
	}
	formatter.VerboseLog("SOQL: %s", output.SOQL)

	result, err := normalizer.Calculate(ctx, rel, req)
	if err != nil {
		return formatter.Fail(ExitFailure, remoteErrorCode(err), "aggregate failed", err)
	}

	if result.Grouped() {
		output.Groups = make([]GroupOutput, len(result.Groups))
		for i, g := range result.Groups {
			key := make([]json.RawMessage, len(g.Key))
			for j, k := range g.Key {
				key[j] = rawValue(k)
			}
			output.Groups[i] = GroupOutput{Key: key, Value: rawValue(g.Value), Entity: g.Entity}
		}
	} else {
		output.Value = rawValue(result.Scalar)
	}

	if formatter.JSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: output, Session: session.ID})
	}
	return outputAggregateText(formatter, output, session.ID)
}

func outputAggregateText(formatter *OutputFormatter, output AggregateOutput, session string) error {
	w := formatter.Writer

	if output.Groups == nil {
		fmt.Fprintln(w, string(output.Value))
	} else {
		for _, g := range output.Groups {
			keys := make([]string, len(g.Key))
			for i, k := range g.Key {
				keys[i] = string(k)
			}
			line := fmt.Sprintf("%s\t%s", strings.Join(keys, ", "), g.Value)
			if g.Entity != nil {
				line += "\t" + g.Entity.ID()
			}
			fmt.Fprintln(w, line)
		}
		fmt.Fprintf(w, "%d group(s)\n", len(output.Groups))
	}

	if session != "" {
		fmt.Fprintf(w, "session: %s\n", session)
	}
	return nil
}
