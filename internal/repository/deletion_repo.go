package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agentdesk/internal/model"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// DeletionRepository journals deletion tickets in PostgreSQL.
type DeletionRepository struct {
	pool *pgxpool.Pool
}

func NewDeletionRepository(pool *pgxpool.Pool) *DeletionRepository {
	return &DeletionRepository{pool: pool}
}

func (r *DeletionRepository) Open(ctx context.Context, entry model.DeletionEntry) error {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO deletion_tickets
		 (ticket_id, resource, record_id, record_name, snapshot, phase,
		  requested_by_user_id, requested_by_username, requested_by_role, requested_by_ip,
		  requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (ticket_id) DO NOTHING`,
		entry.TicketID, entry.Resource, entry.RecordID, entry.RecordName, snapshot, string(entry.Phase),
		entry.RequestedBy.UserID, entry.RequestedBy.Username, entry.RequestedBy.Role, entry.RequestedBy.IP,
		entry.RequestedAt)
	if err != nil {
		return fmt.Errorf("open deletion ticket: %w", err)
	}
	return nil
}

func (r *DeletionRepository) Resolve(ctx context.Context, ticketID string, phase model.Phase, errText string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE deletion_tickets
		 SET phase = $2, error = $3, resolved_at = $4
		 WHERE ticket_id = $1 AND resolved_at IS NULL`,
		ticketID, string(phase), errText, at)
	if err != nil {
		return fmt.Errorf("resolve deletion ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resolve deletion ticket %s: %w", ticketID, model.ErrNoActiveTicket)
	}
	return nil
}

func (r *DeletionRepository) Query(ctx context.Context, q model.DeletionQuery) ([]model.DeletionEntry, model.Meta, error) {
	page, limit := normalizePage(q.Page, q.Limit)

	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	add := func(clause string, value string) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q.Resource != "" {
		add("resource = $%d", q.Resource)
	}
	if q.Phase != "" {
		add("phase = $%d", q.Phase)
	}
	if q.ActorID != "" {
		add("requested_by_user_id = $%d", q.ActorID)
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deletion_tickets`+filter, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count deletion tickets: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := r.pool.Query(ctx,
		`SELECT ticket_id, resource, record_id, record_name, snapshot, phase,
		        requested_by_user_id, requested_by_username, requested_by_role, requested_by_ip,
		        requested_at, resolved_at, error
		 FROM deletion_tickets`+filter+
			fmt.Sprintf(` ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("list deletion tickets: %w", err)
	}
	defer rows.Close()

	entries := make([]model.DeletionEntry, 0)
	for rows.Next() {
		var entry model.DeletionEntry
		var snapshot []byte
		var phase string
		if err := rows.Scan(
			&entry.TicketID, &entry.Resource, &entry.RecordID, &entry.RecordName, &snapshot, &phase,
			&entry.RequestedBy.UserID, &entry.RequestedBy.Username,
			&entry.RequestedBy.Role, &entry.RequestedBy.IP,
			&entry.RequestedAt, &entry.ResolvedAt, &entry.Error,
		); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan deletion ticket: %w", err)
		}
		entry.Phase = model.Phase(phase)
		if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
			return nil, model.Meta{}, fmt.Errorf("decode snapshot %s: %w", entry.TicketID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("iterate deletion tickets: %w", err)
	}

	return entries, model.NewMeta(page, limit, total), nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
