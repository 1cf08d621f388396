package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sendloop/waflow/internal/models"
)

// flowArgs prepares the column values for persisting a flow. Steps are
// serialized to JSON; a nil UpdatedAt becomes a NULL column.
func flowArgs(f models.Flow) (stepsJSON string, err error) {
	b, err := json.Marshal(f.Steps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal flow steps: %w", err)
	}
	return string(b), nil
}

// conversationArgs prepares the nullable JSON column values for persisting
// a conversation. Empty data and absent waiting/handoff become NULL.
func conversationArgs(c models.Conversation) (waitingJSON, dataJSON, handoffJSON interface{}, err error) {
	if c.Waiting != nil {
		b, merr := json.Marshal(c.Waiting)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal waiting: %w", merr)
		}
		waitingJSON = string(b)
	}
	if len(c.Data) > 0 {
		b, merr := json.Marshal(c.Data)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal data: %w", merr)
		}
		dataJSON = string(b)
	}
	if c.Handoff != nil {
		b, merr := json.Marshal(c.Handoff)
		if merr != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal handoff: %w", merr)
		}
		handoffJSON = string(b)
	}
	return waitingJSON, dataJSON, handoffJSON, nil
}

// scanFlowRow scans a Flow from a single sql.Row. Missing rows yield (nil, nil).
func scanFlowRow(row *sql.Row) (*models.Flow, error) {
	var f models.Flow
	var stepsJSON string
	var updatedAt sql.NullTime
	err := row.Scan(&f.Tenant, &f.Name, &f.Version, &stepsJSON, &f.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan flow failed: %w", err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &f.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow steps: %w", err)
	}
	if updatedAt.Valid {
		f.UpdatedAt = &updatedAt.Time
	}
	return &f, nil
}

// scanConversationRow scans a Conversation from a single sql.Row. Missing
// rows yield (nil, nil).
func scanConversationRow(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	var waitingJSON, dataJSON, handoffJSON sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&c.Tenant, &c.Counterparty, &c.Flow, &c.StepIndex,
		&waitingJSON, &dataJSON, &c.StartedAt, &c.UpdatedAt, &c.LastInboundAt,
		&completedAt, &handoffJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation failed: %w", err)
	}
	if waitingJSON.Valid && waitingJSON.String != "" {
		c.Waiting = &models.Waiting{}
		if err := json.Unmarshal([]byte(waitingJSON.String), c.Waiting); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waiting: %w", err)
		}
	}
	if dataJSON.Valid && dataJSON.String != "" {
		c.Data = make(map[string]string)
		if err := json.Unmarshal([]byte(dataJSON.String), &c.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if handoffJSON.Valid && handoffJSON.String != "" {
		c.Handoff = &models.Handoff{}
		if err := json.Unmarshal([]byte(handoffJSON.String), c.Handoff); err != nil {
			return nil, fmt.Errorf("failed to unmarshal handoff: %w", err)
		}
	}
	return &c, nil
}
