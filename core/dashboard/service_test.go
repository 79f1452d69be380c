package dashboard

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/entity"
	"github.com/trezcool/masomo-console/core/listing"
	"github.com/trezcool/masomo-console/services/upstream"
	"github.com/trezcool/masomo-console/storage/cache/inmem"
	"github.com/trezcool/masomo-console/tests"
)

var (
	admin  = core.Operator{ID: "1", Username: "admin", Roles: []string{core.RoleAdmin}}
	viewer = core.Operator{ID: "2", Username: "viewer", Roles: []string{core.RoleViewer}}
)

type fixture struct {
	svc    *Service
	api    *testutil.FakeAPI
	cache  *inmemcache.Cache
	logger *testutil.Logger
}

func setup(t *testing.T, opts ...func(o *Options)) fixture {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	registry, err := entity.NewDefaultRegistry(validate)
	require.NoError(t, err)
	registry.InitValidators(validate, translator)

	api := testutil.NewFakeAPI(t)
	api.Mount(entity.Faculty.Endpoint, testutil.FacultyRecords(25))

	logger := new(testutil.Logger)
	client := upstream.NewClient(upstream.Options{
		BaseURL:  api.URL(),
		Username: testutil.Username,
		Password: testutil.Password,
		Timeout:  5 * time.Second,
		Policy:   upstream.DefaultRetryPolicy,
	}, logger)

	o := Options{DefaultPageSize: 10, MaxPageSize: 100, MaxPages: 50}
	for _, opt := range opts {
		opt(&o)
	}
	cache := inmemcache.New(time.Minute)
	return fixture{
		svc:    NewService(o, registry, client, cache, validate, logger),
		api:    api,
		cache:  cache,
		logger: logger,
	}
}

func names(items []listing.Record) []string {
	res := make([]string, len(items))
	for i, item := range items {
		res[i] = item.String("name")
	}
	return res
}

func TestService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.List(ctx, admin, Query{Kind: entity.KindFaculty, Page: 2})
	require.NoError(t, err)

	assert.Equal(t, entity.KindFaculty, res.Kind)
	assert.False(t, res.Stale)
	require.Len(t, res.Items, 10)
	assert.Equal(t, "Faculty 11", res.Items[0].String("name"))
	assert.Equal(t, Pagination{
		State:     listing.State{Page: 2, PageSize: 10, TotalCount: 25},
		PageCount: 3,
		HasNext:   true,
		HasPrev:   true,
	}, res.Pagination)
}

func TestService_List_clampsPage(t *testing.T) {
	f := setup(t)

	res, err := f.svc.List(context.Background(), admin, Query{Kind: entity.KindFaculty, Page: 9, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Pagination.Page)
	assert.False(t, res.Pagination.HasNext)
	assert.Equal(t, []string{"Faculty 21", "Faculty 22", "Faculty 23", "Faculty 24", "Faculty 25"}, names(res.Items))
	// requested page, first page, clamped page
	assert.Equal(t, 3, f.api.Calls(entity.Faculty.Endpoint))
}

func TestService_List_filters(t *testing.T) {
	tests := []struct {
		name      string
		q         Query
		wantNames []string
		wantTotal int
	}{
		{
			name:      "equals",
			q:         Query{Equals: map[string]string{"status": "ACTIVE"}},
			wantNames: []string{"Faculty 01", "Faculty 06", "Faculty 11", "Faculty 16", "Faculty 21"},
			wantTotal: 5,
		},
		{
			name:      "search",
			q:         Query{Search: "faculty 2", Ordering: "-name"},
			wantNames: []string{"Faculty 25", "Faculty 24", "Faculty 23", "Faculty 22", "Faculty 21", "Faculty 20"},
			wantTotal: 6,
		},
		{
			name:      "fuzzy search covers every page",
			q:         Query{Search: "fac25", Fuzzy: true},
			wantNames: []string{"Faculty 25"},
			wantTotal: 1,
		},
		{
			name:      "fuzzy search, second page",
			q:         Query{Search: "fac2", Fuzzy: true, Page: 2, PageSize: 4},
			wantNames: []string{"Faculty 22", "Faculty 23", "Faculty 24", "Faculty 25"},
			wantTotal: 8,
		},
		{
			name:      "blank filter",
			q:         Query{Equals: map[string]string{"status": ""}, PageSize: 3},
			wantNames: []string{"Faculty 01", "Faculty 02", "Faculty 03"},
			wantTotal: 25,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			tt.q.Kind = entity.KindFaculty

			res, err := f.svc.List(context.Background(), admin, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, names(res.Items))
			assert.Equal(t, tt.wantTotal, res.Pagination.TotalCount)
		})
	}
}

func TestService_List_fuzzySkipsUpstreamSearch(t *testing.T) {
	f := setup(t, func(o *Options) { o.MaxPageSize = 10 })

	res, err := f.svc.List(context.Background(), admin, Query{Kind: entity.KindFaculty, Search: "fac25", Fuzzy: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Faculty 25"}, names(res.Items))
	assert.Equal(t, Pagination{State: listing.State{Page: 1, PageSize: 10, TotalCount: 1}, PageCount: 1}, res.Pagination)
	// every page of the unsearched list
	assert.Equal(t, 3, f.api.Calls(entity.Faculty.Endpoint))
}

func feeStructures() []map[string]interface{} {
	return []map[string]interface{}{
		{"id": 1.0, "name": "Grade 9 fees", "academic_year": "2024-25", "grade_level": "9", "is_active": true, "total_amount": 1200.0},
		{"id": 2.0, "name": "Grade 10 fees", "academic_year": "2024-25", "grade_level": "10", "is_active": true, "total_amount": 1500.0},
		{"id": 3.0, "name": "Grade 10 fees (old)", "academic_year": "2023-24", "grade_level": "10", "is_active": false, "total_amount": 1400.0},
		{"id": 4.0, "name": "Grade 11 fees", "academic_year": "2024-25", "grade_level": "11", "is_active": true, "total_amount": 1700.0},
	}
}

func TestService_List_textFieldWithDigits(t *testing.T) {
	tests := []struct {
		name   string
		shape  testutil.Shape
		equals map[string]string
		want   []string
	}{
		{name: "digits", equals: map[string]string{"grade_level": "10"}, want: []string{"Grade 10 fees (old)", "Grade 10 fees"}},
		{name: "quoted digits", equals: map[string]string{"grade_level": `"10"`}, want: []string{"Grade 10 fees (old)", "Grade 10 fees"}},
		{name: "with a boolean", equals: map[string]string{"grade_level": "10", "is_active": "true"}, want: []string{"Grade 10 fees"}},
		{name: "unpaginated", shape: testutil.ShapeArray, equals: map[string]string{"grade_level": "10"}, want: []string{"Grade 10 fees (old)", "Grade 10 fees"}},
		{name: "unpaginated, quoted digits", shape: testutil.ShapeArray, equals: map[string]string{"grade_level": `"10"`}, want: []string{"Grade 10 fees (old)", "Grade 10 fees"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.api.Mount(entity.FeeStructures.Endpoint, feeStructures())
			if tt.shape != "" {
				f.api.SetShape(tt.shape)
			}
			q := Query{Kind: entity.KindFeeStructures, Equals: tt.equals}

			res, err := f.svc.List(context.Background(), admin, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(res.Items))
			assert.Equal(t, len(tt.want), res.Pagination.TotalCount)

			exp, err := f.svc.Export(context.Background(), admin, q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(exp.Items))

			q.Scope = ScopeAll
			stats, err := f.svc.Stats(context.Background(), admin, q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), stats.Snapshot.Total)
		})
	}
}

func TestService_List_unpaginatedAPI(t *testing.T) {
	f := setup(t)
	f.api.SetShape(testutil.ShapeArray)

	res, err := f.svc.List(context.Background(), admin, Query{Kind: entity.KindFaculty, Page: 9, Ordering: "-name"})
	require.NoError(t, err)

	assert.Equal(t, listing.State{Page: 3, PageSize: 10, TotalCount: 25}, res.Pagination.State)
	assert.Equal(t, []string{"Faculty 05", "Faculty 04", "Faculty 03", "Faculty 02", "Faculty 01"}, names(res.Items))
	assert.Equal(t, 1, f.api.Calls(entity.Faculty.Endpoint))
}

func TestService_List_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, admin, Query{Kind: "students"})
	assert.Equal(t, entity.ErrUnknownKind, err)

	_, err = f.svc.List(ctx, viewer, Query{Kind: entity.KindLeaves})
	assert.Equal(t, ErrForbidden, err)

	_, err = f.svc.List(ctx, admin, Query{Kind: entity.KindFaculty, Equals: map[string]string{"email": "x"}})
	require.Error(t, err)
	require.True(t, core.IsValidationError(err))
	assert.Equal(t, map[string]string{"email": errNotFilterable}, err.(*core.ValidationError).FieldMap())

	_, err = f.svc.List(ctx, admin, Query{Kind: entity.KindFaculty, Ordering: "name;drop"})
	assert.IsType(t, validator.ValidationErrors{}, err)

	_, err = f.svc.List(ctx, admin, Query{Kind: entity.KindFaculty, Scope: "everything"})
	assert.IsType(t, validator.ValidationErrors{}, err)
}

func TestService_List_pageSizeBounds(t *testing.T) {
	f := setup(t, func(o *Options) { o.MaxPageSize = 20 })

	res, err := f.svc.List(context.Background(), admin, Query{Kind: entity.KindFaculty, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 20, res.Pagination.PageSize)
	assert.Len(t, res.Items, 20)
}

func TestService_List_staleCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	q := Query{Kind: entity.KindFaculty, Page: 2}

	fresh, err := f.svc.List(ctx, admin, q)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Len())

	f.api.SetDown(true)

	stale, err := f.svc.List(ctx, admin, q)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, names(fresh.Items), names(stale.Items))
	assert.Equal(t, fresh.Pagination, stale.Pagination)
	assert.Contains(t, f.logger.Messages, "WARN: serving stale page")

	// nothing cached for the first page
	_, err = f.svc.List(ctx, admin, Query{Kind: entity.KindFaculty})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, core.HTTPStatus(err))
}

func TestService_Stats(t *testing.T) {
	t.Run("page", func(t *testing.T) {
		f := setup(t)

		stats, err := f.svc.Stats(context.Background(), admin, Query{Kind: entity.KindFaculty})
		require.NoError(t, err)
		assert.Equal(t, ScopePage, stats.Scope)
		assert.Equal(t, 1, stats.Pages)
		assert.False(t, stats.Complete)
		assert.Equal(t, 10, stats.Snapshot.Total)

		var sum int
		for _, n := range stats.Snapshot.CountsByField["department"] {
			sum += n
		}
		assert.Equal(t, 10, sum)
	})

	t.Run("page of an unpaginated list", func(t *testing.T) {
		f := setup(t)
		f.api.SetShape(testutil.ShapeArray)
		q := Query{Kind: entity.KindFaculty, Page: 3}

		stats, err := f.svc.Stats(context.Background(), admin, q)
		require.NoError(t, err)
		assert.False(t, stats.Complete)
		assert.Equal(t, 5, stats.Snapshot.Total)

		list, err := f.svc.List(context.Background(), admin, q)
		require.NoError(t, err)
		assert.Len(t, list.Items, stats.Snapshot.Total)
	})

	t.Run("all", func(t *testing.T) {
		f := setup(t, func(o *Options) { o.MaxPageSize = 10 })

		stats, err := f.svc.Stats(context.Background(), admin, Query{Kind: entity.KindFaculty, Scope: ScopeAll})
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Pages)
		assert.True(t, stats.Complete)

		snap := stats.Snapshot
		assert.Equal(t, 25, snap.Total)
		assert.Equal(t, map[string]int{
			"Computer Science":   7,
			"Physics":            6,
			"Chemistry":          6,
			listing.UnknownValue: 6,
		}, snap.CountsByField["department"])
		assert.Equal(t, 17, snap.ScalarCounts[listing.ScalarActive])
		assert.Equal(t, 5, snap.ScalarCounts[listing.ScalarOnLeave])
		assert.Equal(t, 5, snap.ScalarCounts[listing.ScalarProbation])
	})

	t.Run("all, truncated", func(t *testing.T) {
		f := setup(t, func(o *Options) {
			o.MaxPageSize = 10
			o.MaxPages = 2
		})

		stats, err := f.svc.Stats(context.Background(), admin, Query{Kind: entity.KindFaculty, Scope: ScopeAll})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Pages)
		assert.False(t, stats.Complete)
		assert.Equal(t, 20, stats.Snapshot.Total)
		assert.Contains(t, f.logger.Messages, "WARN: entity list truncated")
	})

	t.Run("filtered", func(t *testing.T) {
		f := setup(t)

		stats, err := f.svc.Stats(context.Background(), admin, Query{
			Kind:   entity.KindFaculty,
			Scope:  ScopeAll,
			Equals: map[string]string{"status": "ON_LEAVE"},
		})
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Snapshot.Total)
		assert.Equal(t, 5, stats.Snapshot.ScalarCounts[listing.ScalarOnLeave])
	})
}

func TestService_Export(t *testing.T) {
	f := setup(t, func(o *Options) { o.MaxPageSize = 10 })

	exp, err := f.svc.Export(context.Background(), admin, Query{Kind: entity.KindFaculty, Ordering: "-name"})
	require.NoError(t, err)

	assert.Equal(t, "Faculty", exp.Title)
	assert.Equal(t, entity.Faculty.Columns, exp.Columns)
	assert.True(t, exp.Complete)
	require.Len(t, exp.Items, 25)
	assert.Equal(t, "Faculty 25", exp.Items[0].String("name"))
	assert.Equal(t, "Faculty 01", exp.Items[24].String("name"))
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	original := map[string]interface{}{"name": "Faculty 03", "status": "PROBATION"}

	res, err := f.svc.Submit(ctx, admin, Submission{
		Kind:     entity.KindFaculty,
		ID:       "3",
		Original: original,
		Edited:   map[string]interface{}{"name": "Faculty 03", "status": "ON_LEAVE"},
	})
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.Equal(t, []string{"status"}, res.Change.Fields)
	assert.Equal(t, "ON_LEAVE", res.Record.String("status"))
	assert.Equal(t, "EMP003", res.Record.String("employee_id"))

	patches := f.api.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, entity.Faculty.Endpoint+"3/", patches[0].Path)
	assert.Equal(t, map[string]interface{}{"status": "ON_LEAVE"}, patches[0].Values)

	// unchanged
	res, err = f.svc.Submit(ctx, admin, Submission{Kind: entity.KindFaculty, ID: "3", Original: original, Edited: original})
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	assert.True(t, res.Change.IsEmpty())
	assert.Len(t, f.api.Patches(), 1)
}

func TestService_Submit_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	edited := map[string]interface{}{"status": "INACTIVE"}

	tests := []struct {
		name    string
		op      core.Operator
		sub     Submission
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "unknown kind",
			op:   admin,
			sub:  Submission{Kind: "students", ID: "1", Original: edited, Edited: edited},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, entity.ErrUnknownKind, err)
			},
		},
		{
			name: "read-only operator",
			op:   viewer,
			sub:  Submission{Kind: entity.KindFaculty, ID: "1", Original: map[string]interface{}{}, Edited: edited},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, ErrForbidden, err)
			},
		},
		{
			name: "bad id",
			op:   admin,
			sub:  Submission{Kind: entity.KindFaculty, ID: "1/../2", Original: map[string]interface{}{}, Edited: edited},
			wantErr: func(t *testing.T, err error) {
				assert.IsType(t, validator.ValidationErrors{}, err)
			},
		},
		{
			name: "not an object",
			op:   admin,
			sub:  Submission{Kind: entity.KindFaculty, ID: "1", Original: map[string]interface{}{}, Edited: "status=INACTIVE"},
			wantErr: func(t *testing.T, err error) {
				assert.True(t, core.IsValidationError(err))
			},
		},
		{
			name: "unknown record",
			op:   admin,
			sub:  Submission{Kind: entity.KindFaculty, ID: "404", Original: map[string]interface{}{}, Edited: edited},
			wantErr: func(t *testing.T, err error) {
				assert.Equal(t, http.StatusNotFound, core.HTTPStatus(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.op, tt.sub)
			require.Error(t, err)
			tt.wantErr(t, err)
		})
	}
	assert.Empty(t, f.api.Patches())
}

func TestService_Definitions(t *testing.T) {
	f := setup(t)

	kinds := func(defs []entity.Definition) []string {
		res := make([]string, len(defs))
		for i, def := range defs {
			res[i] = def.Kind
		}
		return res
	}
	assert.Equal(t, []string{entity.KindDepartments, entity.KindFaculty}, kinds(f.svc.Definitions(viewer)))
	assert.Len(t, f.svc.Definitions(admin), 5)
	assert.Len(t, f.svc.Definitions(core.Operator{Roles: []string{core.RoleHR}}), 3)
}
