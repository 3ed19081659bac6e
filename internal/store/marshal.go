package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/soqlkit/internal/ir"
)

// marshalPayload converts write fields to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal payloads are equal strings.
func marshalPayload(fields ir.IRObject) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which keeps large integers exact.
func unmarshalPayload(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}

// createResponse is the stored response of a create call.
type createResponse struct {
	ID string `json:"id"`
}

// marshalResponse stores query records in the remote wire shape and
// creates as {"id": ...}. Updates and failed calls store nothing.
func marshalResponse(call Call) (string, error) {
	if call.Failed() {
		return "", nil
	}
	switch call.Kind {
	case KindQuery:
		records := call.Records
		if records == nil {
			records = []ir.Record{}
		}
		data, err := json.Marshal(records)
		if err != nil {
			return "", fmt.Errorf("marshal records: %w", err)
		}
		return string(data), nil
	case KindCreate:
		data, err := json.Marshal(createResponse{ID: call.CreatedID})
		if err != nil {
			return "", fmt.Errorf("marshal create response: %w", err)
		}
		return string(data), nil
	default:
		return "", nil
	}
}

func unmarshalResponse(call *Call, data string) error {
	if data == "" {
		return nil
	}
	switch call.Kind {
	case KindQuery:
		var records []ir.Record
		if err := json.Unmarshal([]byte(data), &records); err != nil {
			return fmt.Errorf("unmarshal records: %w", err)
		}
		call.Records = records
	case KindCreate:
		var resp createResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			return fmt.Errorf("unmarshal create response: %w", err)
		}
		call.CreatedID = resp.ID
	}
	return nil
}
