package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

/*
sqlmanager is a SQL-backed implementation of the Manager interface, targeting
sqlite. The manifest is the system's record of what WAL data has moved to
object storage, so in any durable deployment this is the implementation to
use.
*/

////////////////////////////////////////////////////////////////////////////////

type sqlmanager struct {
	db *sql.DB
}

func NewSQLManager(db *sql.DB) (Manager, error) {
	m := &sqlmanager{db: db}
	if err := m.initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *sqlmanager) initialize() error {
	var maxApplied int64
	err := m.db.QueryRow("select max(version) from schema_migrations").Scan(&maxApplied)
	if err == nil && maxApplied == 1 {
		return nil
	}
	if _, err := m.db.Exec(`
	create table if not exists wal_objects (
		id integer primary key autoincrement,
		object_key text not null default '',
		size bigint not null default 0,
		committed boolean not null default false,
		created_at text not null default current_timestamp,
		committed_at text
	);

	create table if not exists stream_ranges (
		object_id bigint not null,
		stream_id bigint not null,
		start_offset bigint not null,
		end_offset bigint not null,
		position bigint not null,
		length bigint not null,
		primary key (object_id, stream_id, start_offset)
	);

	create index if not exists stream_ranges_stream_idx
		on stream_ranges (stream_id, start_offset);

	create table schema_migrations(
		version bigint not null,
		timestamp text not null default current_timestamp
	);

	insert into schema_migrations(version) values (1);
	`); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (m *sqlmanager) Prepare(ctx context.Context) (Prepared, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	var id uint64
	err = tx.QueryRowContext(ctx, `
	insert into wal_objects default values returning id`).Scan(&id)
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to reserve object ID: %w", err)
	}
	key := objectKey(id)
	if _, err := tx.ExecContext(ctx, `
	update wal_objects set object_key = $1 where id = $2`, key, id); err != nil {
		return Prepared{}, fmt.Errorf("failed to assign object key: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Prepared{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return Prepared{ObjectID: id, Key: key}, nil
}

func (m *sqlmanager) Commit(ctx context.Context, req CommitRequest) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	var committed bool
	err = tx.QueryRowContext(ctx, `
	select committed from wal_objects where id = $1`, req.ObjectID).Scan(&committed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UnknownObjectError{req.ObjectID}
		}
		return fmt.Errorf("failed to read object: %w", err)
	}
	if committed {
		return ObjectCommittedError{req.ObjectID}
	}
	if _, err := tx.ExecContext(ctx, `
	update wal_objects set size = $1, committed = true, committed_at = current_timestamp
	where id = $2`, req.Size, req.ObjectID); err != nil {
		return fmt.Errorf("failed to commit object: %w", err)
	}
	for _, r := range req.Ranges {
		if _, err := tx.ExecContext(ctx, `
		insert into stream_ranges (object_id, stream_id, start_offset, end_offset, position, length)
		values ($1, $2, $3, $4, $5, $6)`,
			req.ObjectID, r.StreamID, r.StartOffset, r.EndOffset, r.Position, r.Length,
		); err != nil {
			return fmt.Errorf("failed to store stream range: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (m *sqlmanager) Lookup(
	ctx context.Context, streamID uint64, start, end uint64) ([]ObjectRange, error) {
	rows, err := m.db.QueryContext(ctx, `
	select o.object_key, r.stream_id, r.start_offset, r.end_offset, r.position, r.length
	from stream_ranges r
	join wal_objects o on o.id = r.object_id
	where r.stream_id = $1 and r.start_offset < $2 and r.end_offset > $3 and o.committed
	order by r.start_offset asc`, streamID, end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream ranges: %w", err)
	}
	defer rows.Close()
	results := []ObjectRange{}
	for rows.Next() {
		var r ObjectRange
		if err := rows.Scan(
			&r.Key, &r.StreamID, &r.StartOffset, &r.EndOffset, &r.Position, &r.Length,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stream range: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream ranges: %w", err)
	}
	return results, nil
}
