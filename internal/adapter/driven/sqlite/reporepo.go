package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/shub/internal/domain/model"
	"github.com/ericfisherdev/shub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db  *DB
	now func() time.Time
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db, now: time.Now}
}

// PutRepositories upserts all records in a single transaction. A record that
// already exists for (owner, name) is fully replaced, including its build status.
func (r *RepoRepo) PutRepositories(ctx context.Context, repos []model.Repository) error {
	const query = `
		INSERT INTO repositories (owner, name, is_fork, is_archived, build_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			is_fork = excluded.is_fork,
			is_archived = excluded.is_archived,
			build_status = excluded.build_status,
			updated_at = excluded.updated_at`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := r.now().UTC().Format(time.RFC3339)
	for _, repo := range repos {
		_, err := stmt.ExecContext(ctx,
			repo.Owner,
			repo.Name,
			repo.IsFork,
			repo.IsArchived,
			nullStatus(repo.BuildStatus),
			updatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert repository %s: %w", repo.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit repositories: %w", err)
	}

	return nil
}

// GetRepositories returns every cached record owned by owner, ordered by name.
func (r *RepoRepo) GetRepositories(ctx context.Context, owner string) ([]model.Repository, error) {
	const query = `
		SELECT owner, name, is_fork, is_archived, build_status
		FROM repositories
		WHERE owner = ?
		ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", owner, err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// SetBuildStatuses updates the build status of each matching record in a
// single transaction. Pairs with no matching record are ignored.
func (r *RepoRepo) SetBuildStatuses(ctx context.Context, statuses []model.RepoStatus) error {
	const query = `UPDATE repositories SET build_status = ?, updated_at = ? WHERE owner = ? AND name = ?`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare status update: %w", err)
	}
	defer stmt.Close()

	updatedAt := r.now().UTC().Format(time.RFC3339)
	for _, s := range statuses {
		if _, err := stmt.ExecContext(ctx, nullStatus(s.Status), updatedAt, s.ID.Owner, s.ID.Name); err != nil {
			return fmt.Errorf("set build status for %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit build statuses: %w", err)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(s scanner) (*model.Repository, error) {
	var (
		repo   model.Repository
		status sql.NullString
	)

	if err := s.Scan(&repo.Owner, &repo.Name, &repo.IsFork, &repo.IsArchived, &status); err != nil {
		return nil, err
	}

	if status.Valid {
		parsed, err := model.ParseBuildStatus(status.String)
		if err != nil {
			return nil, fmt.Errorf("repository %s: %w", repo.ID(), err)
		}
		repo.BuildStatus = parsed
	}

	return &repo, nil
}

func nullStatus(s model.BuildStatus) sql.NullString {
	if !s.Known() {
		return sql.NullString{}
	}
	return sql.NullString{String: s.String(), Valid: true}
}
