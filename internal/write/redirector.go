package write

import (
	"context"
	"log/slog"
	"maps"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/remote"
)

// SandboxGate reports whether writes must be refused.
// config.Config implements it.
type SandboxGate interface {
	Sandboxed() bool
}

// StaticGate is a fixed gate.
type StaticGate bool

// Sandboxed implements SandboxGate.
func (g StaticGate) Sandboxed() bool { return bool(g) }

// Redirector turns record persistence into remote create and update calls.
type Redirector struct {
	client remote.Writer
	gate   SandboxGate
}

// New creates a Redirector. A nil gate never sandboxes.
func New(client remote.Writer, gate SandboxGate) *Redirector {
	if gate == nil {
		gate = StaticGate(false)
	}
	return &Redirector{client: client, gate: gate}
}

// Create sends changes as a new record of sobject and returns the identity
// the remote system assigned. Any Id in changes is dropped.
func (r *Redirector) Create(ctx context.Context, sobject string, changes ir.IRObject) (string, error) {
	if r.gate.Sandboxed() {
		slog.Warn("refusing create in sandbox mode", "sobject", sobject)
		return "", &SandboxError{Op: "create", SObject: sobject}
	}

	payload := maps.Clone(changes)
	if payload == nil {
		payload = ir.IRObject{}
	}
	delete(payload, ir.IdentityField)

	slog.Info("creating record", "sobject", sobject, "fields", logPayload(payload))
	id, err := r.client.Create(ctx, sobject, payload)
	if err != nil {
		return "", err
	}
	slog.Debug("record created", "sobject", sobject, "id", id)
	return id, nil
}

// Update sends changes for the record id of sobject and reports the number
// of affected rows. No changes means no call and zero rows.
func (r *Redirector) Update(ctx context.Context, sobject, id string, changes ir.IRObject) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}
	if r.gate.Sandboxed() {
		slog.Warn("refusing update in sandbox mode", "sobject", sobject, "id", id)
		return 0, &SandboxError{Op: "update", SObject: sobject}
	}
	if id == "" {
		return 0, ErrMissingIdentity
	}

	payload := maps.Clone(changes)
	payload[ir.IdentityField] = ir.IRString(id)

	slog.Info("updating record", "sobject", sobject, "id", id, "fields", logPayload(payload))
	if err := r.client.Update(ctx, sobject, payload); err != nil {
		return 0, err
	}
	return 1, nil
}

// Save persists obj: new objects are created, persisted objects send their
// changed fields. Changes are cleared only on success.
func (r *Redirector) Save(ctx context.Context, obj *Object) (int, error) {
	if obj.IsNew() {
		id, err := r.Create(ctx, obj.SObject(), obj.Changes())
		if err != nil {
			return 0, err
		}
		obj.markPersisted(id)
		return 1, nil
	}

	n, err := r.Update(ctx, obj.SObject(), obj.ID(), obj.Changes())
	if err != nil {
		return 0, err
	}
	obj.clearChanges()
	return n, nil
}

// logPayload renders fields as canonical JSON for log lines.
func logPayload(fields ir.IRObject) string {
	b, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "<unencodable>"
	}
	return string(b)
}
