package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/soqlkit/internal/config"
	"github.com/roach88/soqlkit/internal/remote"
	"github.com/roach88/soqlkit/internal/store"
)

// SessionOptions choose where remote calls go: live, live and journaled,
// or answered from a journaled session.
type SessionOptions struct {
	Journal string // SQLite journal path; defaults to the configured journal
	Replay  string // session ID to replay instead of calling the remote system
	Resume  string // session ID to append live calls to
}

func (s *SessionOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.Journal, "journal", "", "record remote calls to this SQLite journal (default: config journal)")
	cmd.Flags().StringVar(&s.Replay, "replay", "", "answer remote calls from this journaled session")
	cmd.Flags().StringVar(&s.Resume, "resume", "", "append remote calls to this journaled session")
	cmd.MarkFlagsMutuallyExclusive("replay", "resume")
}

// remoteSession is the client a command talks to, plus what must be
// released when the command ends.
type remoteSession struct {
	Client remote.Client

	// ID is the journal session the calls are recorded in or replayed
	// from, empty when nothing is journaled.
	ID string

	store *store.Store
}

func (s *remoteSession) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		slog.Error("error closing journal", "error", err)
	}
}

// openSession builds the client for one command run. label names a new
// journal session.
func openSession(ctx context.Context, cfg *config.Config, opts *SessionOptions, label string) (*remoteSession, error) {
	journal := opts.Journal
	if journal == "" {
		journal = cfg.Journal
	}

	if opts.Replay != "" {
		if journal == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: --replay needs a journal", ErrCodeJournal))
		}
		st, err := store.Open(journal)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, ErrCodeJournal+": failed to open journal", err)
		}
		replayer, err := store.NewReplayer(ctx, st, opts.Replay)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to load session %s", ErrCodeJournal, opts.Replay), err)
		}
		slog.Debug("replaying session", "journal", journal, "session", opts.Replay, "calls", replayer.Remaining())
		return &remoteSession{Client: replayer, ID: opts.Replay, store: st}, nil
	}

	// The handle logs in on first use, so a refused write never connects.
	var client remote.Client = cfg.Handle()
	if journal == "" {
		if opts.Resume != "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: --resume needs a journal", ErrCodeJournal))
		}
		return &remoteSession{Client: client}, nil
	}

	st, err := store.Open(journal)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeJournal+": failed to open journal", err)
	}
	var rec *store.Recorder
	if opts.Resume != "" {
		rec, err = store.ResumeRecorder(ctx, client, st, opts.Resume)
	} else {
		rec, err = store.NewRecorder(ctx, client, st, label)
	}
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, ErrCodeJournal+": failed to start session", err)
	}
	slog.Debug("journaling session", "journal", journal, "session", rec.Session())
	return &remoteSession{Client: rec, ID: rec.Session(), store: st}, nil
}

// remoteErrorCode classifies a failed remote call.
func remoteErrorCode(err error) string {
	if errors.Is(err, store.ErrNotRecorded) {
		return ErrCodeNotRecorded
	}
	return ErrCodeRemote
}
