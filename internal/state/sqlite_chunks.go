package state

import (
	"context"
	"fmt"
	"log/slog"
)

// RecordSource stores the chunks and diagnostics produced for one source file
// in a single transaction.
func (s *SQLiteStore) RecordSource(ctx context.Context, runID, source string, chunks []Chunk, diags []Diagnostic) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (run_id, source, path, table_name, line_number, kind, length)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = chunkStmt.Close() }()

	for _, c := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, runID, source, c.Path, c.TableName, c.LineNumber, c.Kind, c.Length); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.Path, err)
		}
	}

	diagStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO diagnostics (run_id, source, severity, line_number, message)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare diagnostic insert: %w", err)
	}
	defer func() { _ = diagStmt.Close() }()

	for _, d := range diags {
		if _, err := diagStmt.ExecContext(ctx, runID, source, d.Severity, d.Line, d.Message); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("recorded source",
		slog.String("run", runID),
		slog.String("source", source),
		slog.Int("chunks", len(chunks)),
		slog.Int("diagnostics", len(diags)))
	return nil
}

// ListChunks returns the chunks of a run in the order they were recorded.
func (s *SQLiteStore) ListChunks(ctx context.Context, runID string) ([]Chunk, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, source, path, table_name, line_number, kind, length
		FROM chunks WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.RunID, &c.Source, &c.Path, &c.TableName, &c.LineNumber, &c.Kind, &c.Length); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListDiagnostics returns the diagnostics of a run in the order they were recorded.
func (s *SQLiteStore) ListDiagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, source, severity, line_number, message
		FROM diagnostics WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var diags []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.RunID, &d.Source, &d.Severity, &d.Line, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}
