package postgresengine

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine/internal/adapters"
)

// fakeResponse scripts the outcome of one Query or Exec call.
type fakeResponse struct {
	rows         [][]any
	rowsErr      error
	rowsAffected int64
	err          error
}

// fakeDB is an adapters.DBAdapter replaying scripted responses in call order.
type fakeDB struct {
	mu         sync.Mutex
	responses  []fakeResponse
	statements []string
}

func newFakeDB(responses ...fakeResponse) *fakeDB {
	return &fakeDB{responses: responses}
}

func (f *fakeDB) next(statement string) fakeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statements = append(f.statements, statement)

	if len(f.responses) == 0 {
		return fakeResponse{}
	}

	response := f.responses[0]
	f.responses = f.responses[1:]

	return response
}

func (f *fakeDB) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.statements...)
}

func (f *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	response := f.next(query)
	if response.err != nil {
		return nil, response.err
	}

	return &fakeRows{rows: response.rows, err: response.rowsErr, cursor: -1}, nil
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	response := f.next(query)
	if response.err != nil {
		return nil, response.err
	}

	return fakeResult(response.rowsAffected), nil
}

type fakeRows struct {
	rows   [][]any
	err    error
	cursor int
	closed bool
}

func (r *fakeRows) Next() bool {
	r.cursor++
	return r.cursor < len(r.rows)
}

// Scan assigns the scripted values, which must have the exact type of the destinations' elements.
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.cursor]
	if len(row) != len(dest) {
		return fmt.Errorf("fake row has %d columns, scan wants %d", len(row), len(dest))
	}

	for i, value := range row {
		target := reflect.ValueOf(dest[i]).Elem()

		if value == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}

		source := reflect.ValueOf(value)
		if !source.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("column %d: cannot assign %s to %s", i, source.Type(), target.Type())
		}

		target.Set(source)
	}

	return nil
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}
