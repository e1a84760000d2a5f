package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-board/internal/domain"
)

// ActivityLogFilter scopes audit reads. AssignedTo joins through the tasks
// table, so entries for deleted tasks drop out of assignee-scoped reads.
type ActivityLogFilter struct {
	TaskID     *string
	AssignedTo *string
	Limit      int
	Offset     int
}

// ActivityLogRepository is the append-only audit store. Entries are never
// updated or deleted.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) error
	ListWithFilter(ctx context.Context, filter ActivityLogFilter) ([]domain.ActivityLog, error)
	CountWithFilter(ctx context.Context, filter ActivityLogFilter) (int, error)
	ListByTask(ctx context.Context, taskID string, limit int) ([]domain.ActivityLog, error)
}

type activityLogRepository struct {
	pool *pgxpool.Pool
}

// NewActivityLogRepository builds repository.
func NewActivityLogRepository(pool *pgxpool.Pool) ActivityLogRepository {
	return &activityLogRepository{pool: pool}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	const query = `
        INSERT INTO activity_logs (action, task_id, task_title, performed_by, previous_value, new_value, details, ip_address)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.Action,
		entry.TaskID,
		entry.TaskTitle,
		entry.PerformedBy,
		entry.PreviousValue,
		entry.NewValue,
		entry.Details,
		entry.IPAddress,
	).Scan(&entry.ID, &entry.CreatedAt)
}

const activityColumns = `l.id, l.action, l.task_id, l.task_title, l.performed_by,
       l.previous_value, l.new_value, l.details, l.ip_address, l.created_at,
       u.id, u.name, u.email`

func (r *activityLogRepository) ListWithFilter(ctx context.Context, filter ActivityLogFilter) ([]domain.ActivityLog, error) {
	clauses, args, join := buildActivityClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s
        FROM activity_logs l
        JOIN users u ON u.id = l.performed_by
        %s
        WHERE %s
        ORDER BY l.created_at DESC LIMIT %d OFFSET %d`,
		activityColumns, join, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivityLogs(rows)
}

func (r *activityLogRepository) CountWithFilter(ctx context.Context, filter ActivityLogFilter) (int, error) {
	clauses, args, join := buildActivityClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM activity_logs l %s WHERE %s`,
		join, strings.Join(clauses, " AND "))

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *activityLogRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]domain.ActivityLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s
        FROM activity_logs l
        JOIN users u ON u.id = l.performed_by
        WHERE l.task_id=$1
        ORDER BY l.created_at DESC LIMIT %d`, activityColumns, limit)

	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivityLogs(rows)
}

func buildActivityClauses(filter ActivityLogFilter) ([]string, []any, string) {
	clauses := []string{"1=1"}
	args := []any{}
	join := ""

	if filter.TaskID != nil {
		args = append(args, *filter.TaskID)
		clauses = append(clauses, fmt.Sprintf("l.task_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		join = "JOIN tasks t ON t.id = l.task_id"
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}

	return clauses, args, join
}

func scanActivityLogs(rows pgx.Rows) ([]domain.ActivityLog, error) {
	var result []domain.ActivityLog
	for rows.Next() {
		var entry domain.ActivityLog
		var performer domain.UserRef
		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.TaskID,
			&entry.TaskTitle,
			&entry.PerformedBy,
			&entry.PreviousValue,
			&entry.NewValue,
			&entry.Details,
			&entry.IPAddress,
			&entry.CreatedAt,
			&performer.ID,
			&performer.Name,
			&performer.Email,
		); err != nil {
			return nil, err
		}
		entry.Performer = &performer
		result = append(result, entry)
	}
	return result, rows.Err()
}
