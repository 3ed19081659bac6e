package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/aggregate"
	"github.com/roach88/soqlkit/internal/config"
	"github.com/roach88/soqlkit/internal/harness"
	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
	"github.com/roach88/soqlkit/internal/relation"
	"github.com/roach88/soqlkit/internal/soql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Query     QueryFlags
	Aggregate string // aggregate operation, empty for a plain query
	Column    string
	Distinct  bool
	Output    string // output file path
}

// CompilationResult is the SOQL a query compiles to.
type CompilationResult struct {
	Entity   string   `json:"entity"`
	SOQL     string   `json:"soql"`
	Warnings []string `json:"warnings,omitempty"`

	// ShortCircuit is set when the request is answered without a query.
	ShortCircuit bool `json:"short_circuit,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [entities]",
		Short: "Compile a query to SOQL",
		Long: `Compile a query over declared entities to SOQL text without running it.

The entities argument is a CUE file or directory; it defaults to the
entities path in soqlkit.yaml. With --aggregate the query is rewritten
the way the aggregate command would send it.

Examples:
  soqlkit compile ./entities --from Account --select Name,BillingCity
  soqlkit compile --from Account --where Name=Acme --order "Name DESC" --limit 10
  soqlkit compile --from Account --group Name --aggregate count --having "COUNT(Id) > 1"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	opts.Query.register(cmd)
	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "aggregate operation (count|sum|avg|min|max)")
	cmd.Flags().StringVar(&opts.Column, "column", "", "aggregated column (default: all rows)")
	cmd.Flags().BoolVar(&opts.Distinct, "distinct", false, "aggregate distinct values")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

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

	compiler := soql.NewCompiler(nil)
	result := CompilationResult{Entity: rel.Entity().Name}

	var stmt *queryir.SelectStatement
	if opts.Aggregate != "" {
		req, err := aggregateRequest(opts.Aggregate, opts.Column, opts.Distinct)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "invalid aggregate", err)
		}
		plan, err := aggregate.New(nil, compiler, nil).Plan(rel, req)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCompile, "planning aggregate", err)
		}
		stmt = plan.Statement
		result.ShortCircuit = plan.ShortCircuit
	} else {
		stmt, err = rel.Statement()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "invalid query", err)
		}
	}

	if stmt != nil {
		result.SOQL, err = compiler.Compile(stmt)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCompile, "compiling query", err)
		}
		if v := queryir.Validate(stmt); !v.IsClean {
			result.Warnings = v.Warnings
		}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.SOQL+"\n"), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		formatter.VerboseLog("Wrote SOQL to %s", opts.Output)
	}

	return outputCompileSuccess(formatter, result)
}

// loadCatalog resolves the entities path from args or config and loads it,
// reporting failures through formatter.
func loadCatalog(cfg *config.Config, args []string, formatter *OutputFormatter) (ir.Catalog, error) {
	path, err := entitiesPath(args, cfg)
	if err != nil {
		code, message := loadErrorCode(err)
		return nil, formatter.Fail(ExitCommandError, code, message, nil)
	}

	loaded, err := LoadEntities(path)
	if err != nil {
		code, message := loadErrorCode(err)
		return nil, formatter.Fail(ExitCommandError, code, message, nil)
	}
	formatter.VerboseLog("Loaded %d entit(ies) from %d CUE file(s) in %s", len(loaded.Catalog), loaded.FileCount, path)
	return loaded.Catalog, nil
}

// buildQuery turns the query flags into a relation.
func buildQuery(catalog ir.Catalog, flags *QueryFlags, cmd *cobra.Command) (relation.Relation, error) {
	spec, err := flags.Spec(cmd)
	if err != nil {
		return relation.Relation{}, err
	}
	return harness.BuildRelation(catalog, spec)
}

func aggregateRequest(op, column string, distinct bool) (aggregate.Request, error) {
	parsed, err := aggregate.ParseOp(op)
	if err != nil {
		return aggregate.Request{}, err
	}
	return aggregate.Request{Op: parsed, Column: column, Distinct: distinct}, nil
}

// outputCompileSuccess outputs the compiled text.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if result.ShortCircuit {
		fmt.Fprintln(w, "-- LIMIT 0: answered without a query")
	} else {
		fmt.Fprintln(w, result.SOQL)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", strings.TrimSpace(warning))
	}
	return nil
}
