package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/write"
)

// WriteOptions holds flags for the create and update commands.
type WriteOptions struct {
	*RootOptions
	Session SessionOptions
	Set     []string // field=value
}

// WriteResult is the outcome of a create or update.
type WriteResult struct {
	SObject      string `json:"sobject"`
	ID           string `json:"id,omitempty"`
	RowsAffected int    `json:"rows_affected"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <sobject>",
		Short: "Create a record",
		Long: `Create a record through the remote REST API and print its identity.

Refused when the sandbox flag is set: the sandboxed key in soqlkit.yaml,
or the APP_SANDBOX environment variable when the key is absent.

Example:
  soqlkit create Account --set Name=Acme --set NumberOfEmployees=12`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(opts, args[0], "", cmd)
		},
	}

	opts.register(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <sobject> <id>",
		Short: "Update a record",
		Long: `Update fields of a record through the remote REST API.

With no --set fields nothing is sent and zero rows are affected. Refused
when the sandbox flag is set.

Example:
  soqlkit update Account 001xx000003DGb2AAG --set BillingCity=Paris`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(opts, args[0], args[1], cmd)
		},
	}

	opts.register(cmd)
	return cmd
}

func (o *WriteOptions) register(cmd *cobra.Command) {
	o.Session.register(cmd)
	cmd.Flags().StringArrayVar(&o.Set, "set", nil, "field value field=value (repeatable)")
}

// runWrite creates a record when id is empty and updates it otherwise.
func runWrite(opts *WriteOptions, sobject, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	values, err := parseConditions(opts.Set)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, "invalid --set", err)
	}
	changes := ir.IRObject{}
	for name, v := range values {
		iv, err := ir.FromGo(v)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, fmt.Sprintf("invalid value for %s", name), err)
		}
		changes[name] = iv
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "loading config", err)
	}

	label := "create " + sobject
	if id != "" {
		label = "update " + sobject
	}
	session, err := openSession(ctx, cfg, &opts.Session, label)
	if err != nil {
		return err
	}
	defer session.Close()

	redirector := write.New(session.Client, cfg)
	result := WriteResult{SObject: sobject}
	if id == "" {
		result.ID, err = redirector.Create(ctx, sobject, changes)
		if err == nil {
			result.RowsAffected = 1
		}
	} else {
		result.ID = id
		result.RowsAffected, err = redirector.Update(ctx, sobject, id, changes)
	}
	if err != nil {
		if write.IsSandboxError(err) {
			return formatter.Fail(ExitFailure, ErrCodeSandbox, "writes are disabled in sandbox mode", nil)
		}
		return formatter.Fail(ExitFailure, remoteErrorCode(err), label+" failed", err)
	}

	if formatter.JSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, Session: session.ID})
	}
	w := formatter.Writer
	if id == "" {
		fmt.Fprintf(w, "✓ created %s %s\n", sobject, result.ID)
	} else {
		fmt.Fprintf(w, "✓ updated %s %s (%d row(s))\n", sobject, id, result.RowsAffected)
	}
	if session.ID != "" {
		fmt.Fprintf(w, "session: %s\n", session.ID)
	}
	return nil
}
