package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/domain"
	"server/internal/infra"
)

// fakeStore emulates the Postgres tables behind the sqlinline statements, so
// orchestrator semantics can be exercised without a database. Statements are
// recognized by their distinctive SQL fragments.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*jobRow
	byClient map[string]string
	balances map[string]int
	debits   map[string]int
	history  map[string][]historyRow
}

type jobRow struct {
	id            string
	userID        string
	clientJobID   string
	module        string
	params        []byte
	status        domain.JobStatus
	estimatedCost int
	actualCost    int
	previewURL    string
	finalURLs     []byte
	errorMessage  string
	createdAt     time.Time
	updatedAt     time.Time
}

type historyRow struct {
	jobID     string
	module    string
	createdAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     map[string]*jobRow{},
		byClient: map[string]string{},
		balances: map[string]int{},
		debits:   map[string]int{},
		history:  map[string][]historyRow{},
	}
}

func (s *fakeStore) jobVals(j *jobRow) []any {
	return []any{
		j.id, j.userID, j.clientJobID, j.module, j.params, j.status,
		j.estimatedCost, j.actualCost, j.previewURL, j.finalURLs,
		j.errorMessage, j.createdAt, j.updatedAt,
	}
}

func (s *fakeStore) queryRow(query string, args []any, mutated *bool) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	markMutated := func() {
		if mutated != nil {
			*mutated = true
		}
	}

	switch {
	case strings.Contains(query, "insert into jobs"):
		userID, clientJobID := args[1].(string), args[2].(string)
		if _, ok := s.byClient[userID+"/"+clientJobID]; ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		markMutated()
		now := time.Now().UTC()
		row := &jobRow{
			id:            args[0].(string),
			userID:        userID,
			clientJobID:   clientJobID,
			module:        args[3].(string),
			params:        toBytes(args[4]),
			status:        domain.JobStatusQueued,
			estimatedCost: args[5].(int),
			finalURLs:     []byte(`[]`),
			createdAt:     now,
			updatedAt:     now,
		}
		s.jobs[row.id] = row
		s.byClient[userID+"/"+clientJobID] = row.id
		return fakeRow{vals: s.jobVals(row)}

	case strings.Contains(query, "where user_id = $1::uuid and client_job_id"):
		id, ok := s.byClient[args[0].(string)+"/"+args[1].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: s.jobVals(s.jobs[id])}

	case strings.Contains(query, "from jobs\nwhere id"):
		row, ok := s.jobs[args[0].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: s.jobVals(row)}

	case strings.Contains(query, "set status = 'preview_ready'"):
		row, ok := s.jobs[args[0].(string)]
		if !ok || (row.status != domain.JobStatusQueued && row.status != domain.JobStatusProcessing) {
			return fakeRow{err: pgx.ErrNoRows}
		}
		markMutated()
		row.status = domain.JobStatusPreviewReady
		row.previewURL = args[1].(string)
		row.updatedAt = time.Now().UTC()
		return fakeRow{vals: s.jobVals(row)}

	case strings.Contains(query, "set status = 'completed'"):
		row, ok := s.jobs[args[0].(string)]
		if !ok || row.status.Terminal() {
			return fakeRow{err: pgx.ErrNoRows}
		}
		markMutated()
		row.status = domain.JobStatusCompleted
		row.finalURLs = toBytes(args[1])
		row.actualCost = args[2].(int)
		row.updatedAt = time.Now().UTC()
		return fakeRow{vals: s.jobVals(row)}

	case strings.Contains(query, "set status = 'failed'"):
		row, ok := s.jobs[args[0].(string)]
		if !ok || row.status.Terminal() {
			return fakeRow{err: pgx.ErrNoRows}
		}
		markMutated()
		row.status = domain.JobStatusFailed
		row.errorMessage = args[1].(string)
		row.updatedAt = time.Now().UTC()
		return fakeRow{vals: s.jobVals(row)}

	case strings.Contains(query, "for update"):
		balance, ok := s.balances[args[0].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{balance}}

	case strings.Contains(query, "from credit_entries where job_id"):
		amount, ok := s.debits[args[0].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{amount}}

	case strings.Contains(query, "insert into credit_entries") && strings.Contains(query, "'debit'"):
		userID, jobID, amount := args[0].(string), args[1].(string), args[2].(int)
		if _, ok := s.debits[jobID]; ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		if s.balances[userID] < amount {
			return fakeRow{err: &pgconn.PgError{Code: "23514"}}
		}
		markMutated()
		s.debits[jobID] = amount
		s.balances[userID] -= amount
		return fakeRow{vals: []any{s.balances[userID]}}

	case strings.Contains(query, "'grant'"):
		userID, amount := args[0].(string), args[1].(int)
		markMutated()
		s.balances[userID] += amount
		return fakeRow{vals: []any{s.balances[userID]}}

	case strings.Contains(query, "insert into history_entries"):
		markMutated()
		userID := args[0].(string)
		capacity := args[6].(int)
		entries := s.history[userID]
		evicted := 0
		for len(entries) > capacity-1 {
			entries = entries[1:]
			evicted++
		}
		entries = append(entries, historyRow{
			jobID:     args[1].(string),
			module:    args[2].(string),
			createdAt: time.Now().UTC(),
		})
		s.history[userID] = entries
		return fakeRow{vals: []any{evicted}}

	case strings.Contains(query, "select balance from credit_accounts"):
		balance, ok := s.balances[args[0].(string)]
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{vals: []any{balance}}
	}
	return fakeRow{err: fmt.Errorf("fakeStore: unrecognized query: %s", query)}
}

func toBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...)
	case json.RawMessage:
		return append([]byte(nil), b...)
	case string:
		return []byte(b)
	}
	return nil
}

// fakeExecutor adapts fakeStore to infra.SQLExecutor for pool-level access.
type fakeExecutor struct {
	store *fakeStore
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	return f.store.queryRow(query, args, nil)
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("fakeExecutor: Query not supported: %s", query)
}

// fakeTxStarter hands out fakeTx instances over the shared store. Rollback
// restores a snapshot taken at Begin, approximating transaction semantics
// closely enough for single-writer assertions.
type fakeTxStarter struct {
	store *fakeStore
}

func (f *fakeTxStarter) Begin(_ context.Context) (infra.Tx, error) {
	return &fakeTx{store: f.store, snapshot: f.store.clone()}, nil
}

type fakeTx struct {
	store     *fakeStore
	snapshot  *fakeStore
	committed bool
	dirty     bool
}

func (t *fakeTx) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	return t.store.queryRow(query, args, &t.dirty)
}

func (t *fakeTx) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("fakeTx: Query not supported: %s", query)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed || !t.dirty {
		return nil
	}
	t.store.restore(t.snapshot)
	return nil
}

func (s *fakeStore) clone() *fakeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newFakeStore()
	for k, v := range s.jobs {
		copied := *v
		out.jobs[k] = &copied
	}
	for k, v := range s.byClient {
		out.byClient[k] = v
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	for k, v := range s.debits {
		out.debits[k] = v
	}
	for k, v := range s.history {
		out.history[k] = append([]historyRow(nil), v...)
	}
	return out
}

func (s *fakeStore) restore(snapshot *fakeStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = snapshot.jobs
	s.byClient = snapshot.byClient
	s.balances = snapshot.balances
	s.debits = snapshot.debits
	s.history = snapshot.history
}

// fakeRow satisfies pgx.Row over pre-computed values.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("fakeRow: scan arity mismatch: %d != %d", len(dest), len(r.vals))
	}
	for i, d := range dest {
		if err := assign(d, r.vals[i]); err != nil {
			return fmt.Errorf("fakeRow: column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dst, src any) error {
	switch d := dst.(type) {
	case *string:
		d2, ok := src.(string)
		if !ok {
			return fmt.Errorf("want string, have %T", src)
		}
		*d = d2
	case *int:
		d2, ok := src.(int)
		if !ok {
			return fmt.Errorf("want int, have %T", src)
		}
		*d = d2
	case *[]byte:
		*d = append([]byte(nil), toBytes(src)...)
	case *json.RawMessage:
		*d = append(json.RawMessage(nil), toBytes(src)...)
	case *domain.JobStatus:
		switch s := src.(type) {
		case domain.JobStatus:
			*d = s
		case string:
			*d = domain.JobStatus(s)
		default:
			return fmt.Errorf("want status, have %T", src)
		}
	case *time.Time:
		d2, ok := src.(time.Time)
		if !ok {
			return fmt.Errorf("want time, have %T", src)
		}
		*d = d2
	default:
		return fmt.Errorf("unsupported destination %T", dst)
	}
	return nil
}
