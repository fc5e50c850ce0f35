package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "5 0 * * *"},
		{expr: "*/15 * * * *"},
		{expr: "0 9-17 * * 1-5"},
		{expr: "0 0 1,15 * *"},
		{expr: "* * * *", wantErr: true},
		{expr: "60 * * * *", wantErr: true},
		{expr: "* 24 * * *", wantErr: true},
		{expr: "a b c d e", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestCronNext(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "daily reset shortly after midnight",
			expr:  "5 0 * * *",
			after: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 16, 0, 5, 0, 0, time.UTC),
		},
		{
			name:  "same day when time not yet passed",
			expr:  "5 0 * * *",
			after: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC),
		},
		{
			name:  "every quarter hour",
			expr:  "*/15 * * * *",
			after: time.Date(2026, 3, 15, 10, 16, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "weekday constraint skips weekend",
			expr:  "0 9 * * 1-5",
			after: time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC), // пятница
			want:  time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),  // понедельник
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := MustParseCronExpression(tt.expr)
			assert.Equal(t, tt.want, ce.Next(tt.after))
		})
	}
}

func TestCronNextSkipsCurrentMinute(t *testing.T) {
	ce := MustParseCronExpression("5 0 * * *")

	// Next всегда строго после заданного момента.
	at := time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 5, 0, 0, time.UTC), ce.Next(at))
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(5*time.Minute), s.Next(base))
	assert.Equal(t, "@every 5m0s", s.String())
}
