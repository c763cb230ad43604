package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	cars       []Car
	lastFilter Filter
}

func (f *fakeRepo) Create(_ context.Context, car *Car) error { f.cars = append(f.cars, *car); return nil }
func (f *fakeRepo) CreateBulk(_ context.Context, cars []Car) (int, error) {
	f.cars = append(f.cars, cars...)
	return len(cars), nil
}
func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Car, error) {
	for i := range f.cars {
		if f.cars[i].ID == id {
			return &f.cars[i], nil
		}
	}
	return nil, ErrNotFound
}
func (f *fakeRepo) GetByStockID(_ context.Context, stockID string) (*Car, error) {
	for i := range f.cars {
		if f.cars[i].StockID == stockID {
			return &f.cars[i], nil
		}
	}
	return nil, ErrNotFound
}
func (f *fakeRepo) Search(_ context.Context, filter Filter) ([]Car, error) {
	f.lastFilter = filter
	var out []Car
	for _, c := range f.cars {
		if filter.Make != "" && NormalizeText(c.Make) != NormalizeText(filter.Make) {
			continue
		}
		if filter.Model != "" && NormalizeText(c.Model) != NormalizeText(filter.Model) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeRepo) Update(_ context.Context, _ *Car) error    { return nil }
func (f *fakeRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }
func (f *fakeRepo) Makes(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, c := range f.cars {
		if !seen[c.Make] {
			seen[c.Make] = true
			out = append(out, c.Make)
		}
	}
	return out, nil
}
func (f *fakeRepo) ModelsByMake(_ context.Context, make string) ([]string, error) {
	var out []string
	for _, c := range f.cars {
		if make == "" || NormalizeText(c.Make) == NormalizeText(make) {
			out = append(out, c.Model)
		}
	}
	return out, nil
}

func seededRepo() *fakeRepo {
	return &fakeRepo{cars: []Car{
		{ID: uuid.New(), StockID: "K-100", Make: "volkswagen", Model: "jetta", Year: 2021, Price: 320000},
		{ID: uuid.New(), StockID: "K-101", Make: "toyota", Model: "corolla", Year: 2020, Price: 298000},
		{ID: uuid.New(), StockID: "K-102", Make: "chevrolet", Model: "onix", Year: 2022, Price: 255000},
	}}
}

func TestService_Search_BrandAlias(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	cars, err := svc.Search(context.Background(), Filter{Make: "VW"})
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "K-100", cars[0].StockID)
	assert.Equal(t, "volkswagen", repo.lastFilter.Make)
}

func TestService_Search_ModelTypo(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	cars, err := svc.Search(context.Background(), Filter{Make: "toyota", Model: "corola"})
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "corolla", repo.lastFilter.Model)
}

func TestService_Search_UnknownMakePassesThrough(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	cars, err := svc.Search(context.Background(), Filter{Make: "Ferrari"})
	require.NoError(t, err)
	assert.Empty(t, cars)
	assert.Equal(t, "ferrari", repo.lastFilter.Make)
}

func TestService_Search_NoFilters(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	cars, err := svc.Search(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, cars, 3)
}
