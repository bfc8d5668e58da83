package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hoopdeck/courtside/internal/model"
)

// marshalDocument encodes a document at the current schema version.
func marshalDocument(doc *model.SessionDocument) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal document: %w", err)
	}
	return raw, nil
}

// migrateDocument decodes a persisted session document, upgrading older
// schema shapes in place so field additions never corrupt previously
// persisted sessions.
func migrateDocument(raw []byte) (*model.SessionDocument, error) {
	var versioned struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(raw, &versioned); err != nil {
		return nil, fmt.Errorf("queue: parse document version: %w", err)
	}

	switch versioned.SchemaVersion {
	case model.SessionDocSchemaVersion:
		var doc model.SessionDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("queue: parse document: %w", err)
		}
		return &doc, nil

	case 0, 1:
		// v1 (and unversioned pre-v1) documents predate per-event sync
		// status, retry counts and the opponent_jersey rename.
		return migrateV1(raw)

	default:
		return nil, fmt.Errorf("queue: unsupported document schema version %d", versioned.SchemaVersion)
	}
}

// migrateV1 upgrades a v1 document:
//   - events carried "opponent_number"; now "opponent_jersey"
//   - events had no sync_status; they inherit the session's
//   - session had no retry_count; starts at zero
func migrateV1(raw []byte) (*model.SessionDocument, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("queue: parse v1 document: %w", err)
	}

	sessionStatus := ""
	if sess, ok := generic["session"].(map[string]any); ok {
		if s, ok := sess["sync_status"].(string); ok {
			sessionStatus = s
		}
		if _, ok := sess["retry_count"]; !ok {
			sess["retry_count"] = 0
		}
	}

	if events, ok := generic["events"].([]any); ok {
		for _, ev := range events {
			e, ok := ev.(map[string]any)
			if !ok {
				continue
			}
			if num, ok := e["opponent_number"]; ok {
				e["opponent_jersey"] = num
				delete(e, "opponent_number")
			}
			if _, ok := e["sync_status"]; !ok {
				e["sync_status"] = sessionStatus
			}
		}
	}

	generic["schema_version"] = model.SessionDocSchemaVersion

	upgraded, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("queue: re-marshal v1 document: %w", err)
	}
	var doc model.SessionDocument
	if err := json.Unmarshal(upgraded, &doc); err != nil {
		return nil, fmt.Errorf("queue: parse migrated v1 document: %w", err)
	}
	return &doc, nil
}
