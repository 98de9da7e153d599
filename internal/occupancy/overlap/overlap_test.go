package overlap

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/contractdesk/internal/occupancy/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Interval
		want bool
	}{
		{
			name: "disjoint closed",
			a:    domain.Interval{Start: day("2025-01-01"), End: dayPtr("2025-03-01")},
			b:    domain.Interval{Start: day("2025-04-01"), End: dayPtr("2025-05-01")},
			want: false,
		},
		{
			name: "touching boundary",
			a:    domain.Interval{Start: day("2025-01-01"), End: dayPtr("2025-06-01")},
			b:    domain.Interval{Start: day("2025-06-01")},
			want: false,
		},
		{
			name: "open end swallows later start",
			a:    domain.Interval{Start: day("2025-01-01")},
			b:    domain.Interval{Start: day("2030-01-01"), End: dayPtr("2030-02-01")},
			want: true,
		},
		{
			name: "two open intervals",
			a:    domain.Interval{Start: day("2025-01-01")},
			b:    domain.Interval{Start: day("2024-01-01")},
			want: true,
		},
		{
			name: "partial overlap",
			a:    domain.Interval{Start: day("2025-01-01"), End: dayPtr("2025-06-01")},
			b:    domain.Interval{Start: day("2025-05-01")},
			want: true,
		},
		{
			name: "candidate before closed",
			a:    domain.Interval{Start: day("2024-01-01"), End: dayPtr("2024-12-31")},
			b:    domain.Interval{Start: day("2025-01-01"), End: dayPtr("2025-02-01")},
			want: false,
		},
		{
			name: "time of day ignored",
			a:    domain.Interval{Start: day("2025-01-01"), End: ptr(day("2025-06-01").Add(20 * time.Hour))},
			b:    domain.Interval{Start: day("2025-06-01").Add(2 * time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "symmetric")
		})
	}
}

func TestCheckStart(t *testing.T) {
	assert.Nil(t, CheckStart(day("2025-05-01"), nil))
	assert.Nil(t, CheckStart(day("2025-06-01"), dayPtr("2025-06-01")))
	assert.Nil(t, CheckStart(day("2025-07-01"), dayPtr("2025-06-01")))

	conflict := CheckStart(day("2025-05-01"), dayPtr("2025-06-01"))
	require.NotNil(t, conflict)
	assert.Equal(t, domain.ReasonStartBeforePriorEnd, conflict.Reason)
	assert.Equal(t, day("2025-06-01"), *conflict.BlockingDate)

	err := conflict.Err()
	got, ok := domain.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, day("2025-06-01"), *got.BlockingDate)
	assert.Contains(t, err.Error(), "2025-06-01")
}

func ptr(t time.Time) *time.Time { return &t }

type fakeRepo struct {
	domain.Repository
	entries []domain.MeterHistory
}

func (f *fakeRepo) ListByMeter(_ context.Context, _ *gorm.DB, _ snowflake.ID) ([]domain.MeterHistory, error) {
	return f.entries, nil
}

func TestValidatorCheckOverlap(t *testing.T) {
	own := snowflake.ID(10)
	repo := &fakeRepo{entries: []domain.MeterHistory{
		{ID: 1, CustomerID: 5, ContractID: &own, StartDate: day("2024-01-01"), EndDate: dayPtr("2024-12-31")},
		{ID: 2, CustomerID: 6, StartDate: day("2025-01-01"), EndDate: dayPtr("2025-06-01")},
	}}
	v := NewValidator(repo)
	ctx := context.Background()

	conflict, err := v.CheckOverlap(ctx, nil, 1, domain.Interval{Start: day("2025-03-01")}, 0)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, snowflake.ID(2), conflict.HistoryID)
	assert.Equal(t, day("2025-06-01"), *conflict.BlockingDate)

	conflict, err = v.CheckOverlap(ctx, nil, 1, domain.Interval{Start: day("2024-06-01"), End: dayPtr("2024-07-01")}, own)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	conflict, err = v.CheckOverlap(ctx, nil, 1, domain.Interval{Start: day("2025-06-01")}, 0)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	_, err = v.CheckOverlap(ctx, nil, 1, domain.Interval{Start: day("2025-06-01"), End: dayPtr("2025-05-01")}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}
