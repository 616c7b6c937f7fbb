package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// mockExecutor はExecutorのテスト用モック。
type mockExecutor struct {
	execFn func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	calls  []string
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.calls = append(m.calls, query)
	return m.execFn(ctx, query, args...)
}

// mockResult はsql.Resultのテスト用実装。
type mockResult struct {
	rowsAffected    int64
	rowsAffectedErr error
}

func (r *mockResult) LastInsertId() (int64, error) { return 0, nil }
func (r *mockResult) RowsAffected() (int64, error) { return r.rowsAffected, r.rowsAffectedErr }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRun_DeletesExpiredSessions(t *testing.T) {
	exec := &mockExecutor{
		execFn: func(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
			return &mockResult{rowsAffected: 3}, nil
		},
	}
	job := NewCleanupJob(exec, discardLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(exec.calls) != 1 {
		t.Fatalf("exec calls = %d, want 1", len(exec.calls))
	}
	query := exec.calls[0]
	if !strings.Contains(query, "DELETE FROM sessions") {
		t.Errorf("query should delete from sessions, got %q", query)
	}
	if !strings.Contains(query, "expires_at < now()") {
		t.Errorf("query should only target expired sessions, got %q", query)
	}
}

// 削除対象がない場合もエラーにならない（冪等）。
func TestRun_NoExpiredSessions_Succeeds(t *testing.T) {
	exec := &mockExecutor{
		execFn: func(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
			return &mockResult{rowsAffected: 0}, nil
		},
	}
	job := NewCleanupJob(exec, discardLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("expected no error for zero deletions, got %v", err)
	}
}

func TestRun_ExecFails_ReturnsError(t *testing.T) {
	exec := &mockExecutor{
		execFn: func(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
			return nil, errors.New("connection refused")
		},
	}
	job := NewCleanupJob(exec, discardLogger())

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when exec fails")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error should wrap the cause, got %v", err)
	}
}

func TestRun_RowsAffectedFails_ReturnsError(t *testing.T) {
	exec := &mockExecutor{
		execFn: func(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
			return &mockResult{rowsAffectedErr: errors.New("driver does not support RowsAffected")}, nil
		},
	}
	job := NewCleanupJob(exec, discardLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Error("expected error when RowsAffected fails")
	}
}

func TestRun_LogsDeletedCount(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	exec := &mockExecutor{
		execFn: func(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
			return &mockResult{rowsAffected: 7}, nil
		},
	}
	job := NewCleanupJob(exec, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(buf.String(), `"deleted_count":7`) {
		t.Errorf("log should include deleted_count, got %s", buf.String())
	}
}
