package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringihq/ringi/model"
)

// PgProcessStore is a PostgreSQL-backed ProcessStore using pgx/v5. Status and
// approval level are stored as their string tokens; the payload is stored as
// a serialized JSON map.
type PgProcessStore struct {
	pool *pgxpool.Pool
}

// NewPgProcessStore creates a new PostgreSQL process store.
func NewPgProcessStore(pool *pgxpool.Pool) *PgProcessStore {
	return &PgProcessStore{pool: pool}
}

// Create inserts a new process record.
func (s *PgProcessStore) Create(ctx context.Context, p model.Process) error {
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	metaJSON, err := marshalMeta(p.ApprovalMeta)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO processes (
			id, workflow_type, initiator, status, approval_level,
			payload, approval_meta, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)`,
		p.ID, p.WorkflowType, p.Initiator, p.Status.String(), p.ApprovalLevel.String(),
		payloadJSON, metaJSON, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert process: %w", err)
	}
	return nil
}

// Get retrieves a process by ID.
func (s *PgProcessStore) Get(ctx context.Context, processID string) (model.Process, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, workflow_type, initiator, status, approval_level,
		       payload, approval_meta, version, created_at, updated_at
		FROM processes
		WHERE id = $1`,
		processID,
	)

	p, err := scanProcess(row)
	if err == pgx.ErrNoRows {
		return model.Process{}, model.NewProcessNotFoundError(processID)
	}
	if err != nil {
		return model.Process{}, fmt.Errorf("query process: %w", err)
	}
	return p, nil
}

// Update persists an updated process with optimistic locking.
func (s *PgProcessStore) Update(ctx context.Context, p model.Process) error {
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	metaJSON, err := marshalMeta(p.ApprovalMeta)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE processes SET
			status = $1,
			approval_level = $2,
			payload = $3,
			approval_meta = $4,
			version = $5,
			updated_at = $6
		WHERE id = $7 AND version = $8`,
		p.Status.String(), p.ApprovalLevel.String(), payloadJSON, metaJSON,
		p.Version+1, time.Now().UTC(),
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("process %q version conflict (expected %d)", p.ID, p.Version),
		)
	}
	return nil
}

// AppendEvent adds an event to the process audit trail.
func (s *PgProcessStore) AppendEvent(ctx context.Context, event model.ProcessEvent) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO process_events (
			id, process_id, event, actor_id, data, comment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.ProcessID, event.Event, event.ActorID,
		dataJSON, event.Comment, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert process event: %w", err)
	}
	return nil
}

// GetEvents retrieves all events for a process.
func (s *PgProcessStore) GetEvents(ctx context.Context, processID string) ([]model.ProcessEvent, error) {
	// Verify the process exists so a missing record reads as PROCESS_NOT_FOUND.
	if _, err := s.Get(ctx, processID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, process_id, event, actor_id, data, comment, created_at
		FROM process_events
		WHERE process_id = $1
		ORDER BY created_at ASC`,
		processID,
	)
	if err != nil {
		return nil, fmt.Errorf("query process events: %w", err)
	}
	defer rows.Close()

	var events []model.ProcessEvent
	for rows.Next() {
		var evt model.ProcessEvent
		var dataJSON []byte
		if err := rows.Scan(
			&evt.ID, &evt.ProcessID, &evt.Event, &evt.ActorID,
			&dataJSON, &evt.Comment, &evt.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan process event: %w", err)
		}
		if dataJSON != nil {
			_ = json.Unmarshal(dataJSON, &evt.Data)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// List returns processes matching the filters, newest first.
func (s *PgProcessStore) List(ctx context.Context, filters ProcessFilters) ([]model.Process, error) {
	query := `SELECT id, workflow_type, initiator, status, approval_level,
	                 payload, approval_meta, version, created_at, updated_at
	          FROM processes
	          WHERE 1=1`
	var args []any
	argIdx := 1

	if filters.WorkflowType != "" {
		query += fmt.Sprintf(" AND workflow_type = $%d", argIdx)
		args = append(args, filters.WorkflowType)
		argIdx++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filters.Status.String())
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processes: %w", err)
	}
	defer rows.Close()

	var processes []model.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process: %w", err)
		}
		processes = append(processes, p)
	}
	return processes, rows.Err()
}

// HealthCheck verifies database connectivity for the readiness endpoint.
func (s *PgProcessStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProcess reads one process row, decoding the payload and approval meta.
func scanProcess(row rowScanner) (model.Process, error) {
	var p model.Process
	var status, level string
	var payloadJSON, metaJSON []byte

	if err := row.Scan(
		&p.ID, &p.WorkflowType, &p.Initiator, &status, &level,
		&payloadJSON, &metaJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return model.Process{}, err
	}

	p.Status = model.ProcessStatus(status)
	p.ApprovalLevel = model.ApprovalLevel(level)

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &p.Payload); err != nil {
			return model.Process{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if len(metaJSON) > 0 {
		var meta model.ApprovalMeta
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return model.Process{}, fmt.Errorf("unmarshal approval meta: %w", err)
		}
		p.ApprovalMeta = &meta
	}

	return p, nil
}

// marshalMeta serializes approval metadata, keeping NULL for undecided processes.
func marshalMeta(meta *model.ApprovalMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal approval meta: %w", err)
	}
	return data, nil
}
