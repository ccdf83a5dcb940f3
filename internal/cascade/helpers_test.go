package cascade

import (
	"context"
	"sync"
	"testing"

	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

type fakeRemote struct {
	mu      sync.Mutex
	deletes []records.Identity
	saves   []records.Identity

	deleteResp *DeleteResponse
	saveResp   *SaveResponse
	err        error
}

func (f *fakeRemote) DeleteRecord(_ context.Context, rec *records.Record) (*DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, rec.Identity)
	if f.err != nil {
		return nil, f.err
	}
	if f.deleteResp == nil {
		return &DeleteResponse{}, nil
	}
	return f.deleteResp, nil
}

func (f *fakeRemote) SaveRecord(_ context.Context, rec *records.Record) (*SaveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, rec.Identity)
	if f.err != nil {
		return nil, f.err
	}
	return f.saveResp, nil
}

func id(typ, key string) records.Identity {
	return records.Identity{Type: typ, ID: key}
}

// orgGraph loads company c1 with departments d1 and d2, users u1 and u2 in
// d1, and an unrelated company c2 with department d3.
func orgGraph(t *testing.T) (*records.Store, *metadata.Registry) {
	t.Helper()
	reg := metadata.NewDefaultRegistry()
	s := records.NewStore(reg)

	push := func(ident records.Identity, attrs map[string]any, many map[string][]records.Identity) {
		rec := records.NewRecord(ident)
		for k, v := range attrs {
			rec.Attrs[k] = v
		}
		for name, ids := range many {
			rec.LinkMany(name, ids)
		}
		s.Push(rec)
	}

	push(id("user", "u1"), map[string]any{"username": "ann"}, nil)
	push(id("user", "u2"), map[string]any{"username": "bob"}, nil)
	push(id("department", "d1"), map[string]any{"name": "R&D"}, map[string][]records.Identity{
		"users": {id("user", "u1"), id("user", "u2")},
	})
	push(id("department", "d2"), map[string]any{"name": "Sales"}, nil)
	push(id("company", "c1"), map[string]any{"name": "Acme"}, map[string][]records.Identity{
		"departments": {id("department", "d1"), id("department", "d2")},
	})
	push(id("department", "d3"), map[string]any{"name": "Ops"}, nil)
	push(id("company", "c2"), map[string]any{"name": "Globex"}, map[string][]records.Identity{
		"departments": {id("department", "d3")},
	})
	return s, reg
}

func identities(recs []*records.Record) []records.Identity {
	out := make([]records.Identity, len(recs))
	for i, r := range recs {
		out[i] = r.Identity
	}
	return out
}

// flakyStore fails MarkSaved and MarkInvalid for the listed records and
// delegates everything else.
type flakyStore struct {
	*records.Store
	fail map[records.Identity]error
}

func (f *flakyStore) MarkSaved(ctx context.Context, ident records.Identity) error {
	if err := f.fail[ident]; err != nil {
		return err
	}
	return f.Store.MarkSaved(ctx, ident)
}

func (f *flakyStore) MarkInvalid(ctx context.Context, ident records.Identity, errs []records.ValidationError) error {
	if err := f.fail[ident]; err != nil {
		return err
	}
	return f.Store.MarkInvalid(ctx, ident, errs)
}
