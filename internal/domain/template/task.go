package template

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeMigrateLegacy is the asynq task type for copying a tenant's legacy
// tree templates into the relational store.
const TaskTypeMigrateLegacy = "template:migrate-legacy"

// MigrateLegacyPayload is the serialized payload for a legacy migration task.
// The organization scope is always migrated; AppIDs adds application scopes.
type MigrateLegacyPayload struct {
	Tenant  string   `json:"tenant"`
	Channel Channel  `json:"channel"`
	AppIDs  []string `json:"app_ids,omitempty"`
}

// NewMigrateLegacyTask creates a new asynq task for a legacy migration.
func NewMigrateLegacyTask(p MigrateLegacyPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeMigrateLegacy, payload), nil
}

// ParseMigrateLegacyPayload deserializes the task payload.
func ParseMigrateLegacyPayload(data []byte) (*MigrateLegacyPayload, error) {
	var p MigrateLegacyPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.Tenant == "" {
		return nil, fmt.Errorf("task payload has no tenant: %w", asynq.SkipRetry)
	}
	if _, err := ParseChannel(string(p.Channel)); err != nil {
		return nil, fmt.Errorf("task payload: %v: %w", err, asynq.SkipRetry)
	}
	return &p, nil
}
