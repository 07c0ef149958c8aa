package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

// ConnectionRepository provides data access for the source connection registry.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *models.SourceConnection) error
	Update(ctx context.Context, conn *models.SourceConnection) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SourceConnection, error)
	List(ctx context.Context) ([]*models.SourceConnection, error)
}

type connectionRepository struct {
	db database.Querier
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db database.Querier) ConnectionRepository {
	return &connectionRepository{db: db}
}

var _ ConnectionRepository = (*connectionRepository)(nil)

func (r *connectionRepository) Create(ctx context.Context, conn *models.SourceConnection) error {
	now := time.Now()

	query := `
		INSERT INTO engine_source_connections (
			name, db_type, host, port, database_name, username, password, options,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		conn.Name,
		conn.DBType,
		conn.Host,
		conn.Port,
		conn.Database,
		conn.Username,
		nullString(conn.Password),
		nullString(conn.Options),
		now,
		now,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create source connection: %w", err)
	}

	return nil
}

func (r *connectionRepository) Update(ctx context.Context, conn *models.SourceConnection) error {
	// COALESCE keeps the stored password when the update omits it.
	query := `
		UPDATE engine_source_connections
		SET name = $2, db_type = $3, host = $4, port = $5, database_name = $6,
		    username = $7, password = COALESCE($8, password), options = $9,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		conn.ID,
		conn.Name,
		conn.DBType,
		conn.Host,
		conn.Port,
		conn.Database,
		conn.Username,
		nullString(conn.Password),
		nullString(conn.Options),
	).Scan(&conn.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		if database.IsUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update source connection: %w", err)
	}

	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_source_connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source connection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceConnection, error) {
	query := connectionSelect + ` WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) List(ctx context.Context) ([]*models.SourceConnection, error) {
	rows, err := r.db.Query(ctx, connectionSelect+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.SourceConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source connections: %w", err)
	}

	return conns, nil
}

const connectionSelect = `
	SELECT id, name, db_type, host, port, database_name, username, password, options,
	       created_at, updated_at
	FROM engine_source_connections`

func scanConnection(row pgx.Row) (*models.SourceConnection, error) {
	var c models.SourceConnection
	var password, options *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.DBType,
		&c.Host,
		&c.Port,
		&c.Database,
		&c.Username,
		&password,
		&options,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan source connection: %w", err)
	}

	c.Password = derefString(password)
	c.Options = derefString(options)

	return &c, nil
}
