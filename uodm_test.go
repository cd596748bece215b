package uodm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davrot/uodm/config"
	"github.com/davrot/uodm/store"
)

func citySchema() Schema {
	return Schema{
		Collection: "cities",
		Attributes: map[string]Attr{
			"name":       {Type: TypeString},
			"population": {Type: TypeNumber, Mutable: true},
			"ancient":    {Type: TypeBool, Default: false, HasDefault: true},
		},
	}
}

func personSchema() Schema {
	return Schema{
		Collection: "people",
		Attributes: map[string]Attr{
			"name":    {Type: TypeString},
			"age":     {Type: TypeNumber, Mutable: true},
			"city":    {Type: TypeString, Mutable: true, Reference: "cities"},
			"is_cool": {Type: TypeBool, Default: true, HasDefault: true},
		},
	}
}

func newTestODM(t *testing.T) (*ODM, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	odm := New(st)
	ctx := context.Background()
	require.NoError(t, odm.Register(ctx, citySchema()))
	require.NoError(t, odm.Register(ctx, personSchema()))
	return odm, st
}

func TestCreateDuplicateName(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	_, err := odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.NoError(t, err)

	_, err = odm.Create(ctx, "cities", "rome", Fields{"name": "Rome II", "population": 1})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	a, err := odm.GetOrCreate(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.NoError(t, err)
	b, err := odm.GetOrCreate(ctx, "cities", "rome", nil)
	require.NoError(t, err)
	require.Same(t, a, b)

	c, err := odm.Get(ctx, "cities", "rome")
	require.NoError(t, err)
	require.Same(t, a, c)
}

func TestGetMissingIsNotFound(t *testing.T) {
	odm, _ := newTestODM(t)

	_, err := odm.Get(context.Background(), "cities", "atlantis")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetUnregisteredCollection(t *testing.T) {
	odm := New(store.NewMemoryStore())

	_, err := odm.Get(context.Background(), "nowhere", "x")
	require.ErrorIs(t, err, ErrInvalidValue)
}

// indexDownStore refuses the first index build, as a store hiccup would.
type indexDownStore struct {
	*store.MemoryStore
	failures int
}

var errIndexDown = errors.New("index build failed")

func (s *indexDownStore) EnsureNameIndex(ctx context.Context, collection string) error {
	if s.failures > 0 {
		s.failures--
		return errIndexDown
	}
	return s.MemoryStore.EnsureNameIndex(ctx, collection)
}

func TestRegisterFailedIndexLeavesNoSchema(t *testing.T) {
	st := &indexDownStore{MemoryStore: store.NewMemoryStore(), failures: 1}
	odm := New(st)
	ctx := context.Background()

	err := odm.Register(ctx, citySchema())
	require.ErrorIs(t, err, errIndexDown)

	// The collection must not be usable while its index never went in.
	_, err = odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.ErrorIs(t, err, ErrInvalidValue)

	// A retry after the transient failure succeeds.
	require.NoError(t, odm.Register(ctx, citySchema()))
	_, err = odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.NoError(t, err)
}

func TestRegisterTwice(t *testing.T) {
	odm, _ := newTestODM(t)

	err := odm.Register(context.Background(), citySchema())
	require.ErrorIs(t, err, ErrInvalidValue)
}

// raceStore simulates a concurrent process winning the insert: the first
// Insert plants the rival document and reports the collision.
type raceStore struct {
	*store.MemoryStore
	raced bool
}

func (r *raceStore) Insert(ctx context.Context, collection, name string, fields store.Fields) error {
	if !r.raced {
		r.raced = true
		rival := store.Fields{"name": "Rival Rome", "population": 7, "ancient": true}
		if err := r.MemoryStore.Insert(ctx, collection, name, rival); err != nil {
			return err
		}
		return store.ErrDuplicateName
	}
	return r.MemoryStore.Insert(ctx, collection, name, fields)
}

func TestGetOrCreateLostRaceLoadsWinner(t *testing.T) {
	st := &raceStore{MemoryStore: store.NewMemoryStore()}
	odm := New(st)
	ctx := context.Background()
	require.NoError(t, odm.Register(ctx, citySchema()))

	obj, err := odm.GetOrCreate(ctx, "cities", "rome", Fields{"name": "My Rome", "population": 1})
	require.NoError(t, err)

	// The concurrently created document wins; ours was never written.
	name, err := obj.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Rival Rome", name)
}

func TestReleaseDropsIdentityButNotRecord(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	a, err := odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.NoError(t, err)

	odm.Release("cities", "rome")
	b, err := odm.Get(ctx, "cities", "rome")
	require.NoError(t, err)
	require.NotSame(t, a, b)

	pop, err := b.Get("population")
	require.NoError(t, err)
	require.Equal(t, 100, pop)
}

func TestDeleteRemovesRecord(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	_, err := odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.NoError(t, err)

	require.NoError(t, odm.Delete(ctx, "cities", "rome"))
	_, err = odm.Get(ctx, "cities", "rome")
	require.ErrorIs(t, err, ErrNotFound)

	err = odm.Delete(ctx, "cities", "rome")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewGeneratesUniqueNames(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	a, err := odm.New(ctx, "cities", Fields{"name": "A", "population": 1})
	require.NoError(t, err)
	b, err := odm.New(ctx, "cities", Fields{"name": "B", "population": 2})
	require.NoError(t, err)
	require.NotEmpty(t, a.Name())
	require.NotEqual(t, a.Name(), b.Name())
}

func TestFindServesLiveInstances(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	rome, err := odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100, "ancient": true})
	require.NoError(t, err)
	_, err = odm.Create(ctx, "cities", "york", Fields{"name": "York", "population": 50, "ancient": true})
	require.NoError(t, err)
	_, err = odm.Create(ctx, "cities", "brasilia", Fields{"name": "Brasília", "population": 200})
	require.NoError(t, err)

	got, err := odm.Find(ctx, "cities", Fields{"ancient": true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, obj := range got {
		if obj.Name() == "rome" {
			// The already-live instance is reused, not rebuilt.
			require.Same(t, rome, obj)
		}
	}

	all, err := odm.Find(ctx, "cities", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestCloseDropsRegistry(t *testing.T) {
	odm, st := newTestODM(t)
	ctx := context.Background()

	a, err := odm.Create(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
	require.NoError(t, err)
	require.NoError(t, odm.Close(ctx))

	// The record survives; identity does not.
	fields, err := st.Load(ctx, "cities", "rome")
	require.NoError(t, err)
	require.Equal(t, "Rome", fields["name"])

	b, err := odm.Get(ctx, "cities", "rome")
	require.NoError(t, err)
	require.NotSame(t, a, b)
}

func TestConcurrentGetOrCreateConvergesOnOneInstance(t *testing.T) {
	odm, _ := newTestODM(t)
	ctx := context.Background()

	const n = 16
	objs := make([]*Object, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			objs[i], errs[i] = odm.GetOrCreate(ctx, "cities", "rome", Fields{"name": "Rome", "population": 100})
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Same(t, objs[0], objs[i])
	}
}

func TestOpenWithoutURI(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{})
	require.ErrorIs(t, err, ErrConnection)
}

func TestInsertRaceYieldsOneWinner(t *testing.T) {
	// Store-level uniqueness: one success, one ErrDuplicateName.
	st := store.NewMemoryStore()
	ctx := context.Background()

	errA := st.Insert(ctx, "cities", "rome", store.Fields{"population": 1})
	errB := st.Insert(ctx, "cities", "rome", store.Fields{"population": 2})
	require.True(t, (errA == nil) != (errB == nil))
	require.True(t, errors.Is(errA, store.ErrDuplicateName) || errors.Is(errB, store.ErrDuplicateName))
}
