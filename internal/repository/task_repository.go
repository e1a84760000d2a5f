package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-board/internal/domain"
)

// TaskFilter captures list/stats predicates. Nil pointer fields are absent.
type TaskFilter struct {
	AssignedTo *string
	CreatedBy  *string
	Status     *domain.TaskStatus
	Priority   *domain.TaskPriority
	Search     *string
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	CountWithFilter(ctx context.Context, filter TaskFilter) (int, error)
	CountByStatus(ctx context.Context, filter TaskFilter) (map[domain.TaskStatus]int, error)
	CountByPriority(ctx context.Context, filter TaskFilter) (map[domain.TaskPriority]int, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date,
       t.assigned_to, t.created_by, t.tags, t.completed_at, t.created_at, t.updated_at,
       a.id, a.name, a.email, c.id, c.name, c.email`

const taskJoin = `FROM tasks t
        JOIN users a ON a.id = t.assigned_to
        JOIN users c ON c.id = t.created_by`

// sortColumns whitelists caller-facing sort fields.
var sortColumns = map[string]string{
	"createdAt": "t.created_at",
	"updatedAt": "t.updated_at",
	"dueDate":   "t.due_date",
	"priority":  "t.priority",
	"status":    "t.status",
	"title":     "t.title",
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (title, description, status, priority, due_date, assigned_to, created_by, tags, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.AssignedTo,
		task.CreatedBy,
		task.Tags,
		task.CompletedAt,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, description=$2, status=$3, priority=$4, due_date=$5,
            assigned_to=$6, tags=$7, completed_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.AssignedTo,
		task.Tags,
		task.CompletedAt,
		task.ID,
	).Scan(&task.UpdatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE t.id=$1`, taskColumns, taskJoin)
	var task domain.Task
	if err := scanTask(r.pool.QueryRow(ctx, query, id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *taskRepository) ListWithFilter(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	clauses, args := buildTaskClauses(filter)

	orderCol, ok := sortColumns[filter.SortBy]
	if !ok {
		orderCol = "t.created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		taskColumns, taskJoin, strings.Join(clauses, " AND "), orderCol, direction, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) CountWithFilter(ctx context.Context, filter TaskFilter) (int, error) {
	clauses, args := buildTaskClauses(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tasks t WHERE %s`, strings.Join(clauses, " AND "))

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *taskRepository) CountByStatus(ctx context.Context, filter TaskFilter) (map[domain.TaskStatus]int, error) {
	clauses, args := buildTaskClauses(filter)
	query := fmt.Sprintf(`SELECT t.status, COUNT(*) FROM tasks t WHERE %s GROUP BY t.status`,
		strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TaskStatus]int)
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *taskRepository) CountByPriority(ctx context.Context, filter TaskFilter) (map[domain.TaskPriority]int, error) {
	clauses, args := buildTaskClauses(filter)
	query := fmt.Sprintf(`SELECT t.priority, COUNT(*) FROM tasks t WHERE %s GROUP BY t.priority`,
		strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TaskPriority]int)
	for rows.Next() {
		var priority domain.TaskPriority
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		counts[priority] = count
	}
	return counts, rows.Err()
}

func buildTaskClauses(filter TaskFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(t.description) LIKE %s)", placeholder, placeholder))
	}

	return clauses, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner, task *domain.Task) error {
	var assignee, creator domain.UserRef
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.Tags,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
		&assignee.ID,
		&assignee.Name,
		&assignee.Email,
		&creator.ID,
		&creator.Name,
		&creator.Email,
	); err != nil {
		return err
	}
	task.Assignee = &assignee
	task.Creator = &creator
	return nil
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
