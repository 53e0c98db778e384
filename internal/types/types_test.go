package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "casual", want: ModeCasual},
		{in: "easy", want: ModeCasual},
		{in: " Sequential ", want: ModeSequential},
		{in: "expert", want: ModeSequential},
		{in: "hard", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, ModeSequential.Capped())
	assert.False(t, ModeCasual.Capped())
}

func TestVerseKey(t *testing.T) {
	v := Verse{Book: "genesis", Chapter: 1, Number: 4, Text: "And God saw the light"}
	assert.Equal(t, "genesis|1|4", v.Key().String())
	assert.Equal(t, "genesis 1:4", v.Reference())

	key, err := ParseVerseKey("1-samuel|3|10")
	require.NoError(t, err)
	assert.Equal(t, VerseKey{Book: "1-samuel", Chapter: 3, Verse: 10}, key)

	for _, bad := range []string{"", "genesis|1", "genesis|x|1", "genesis|1|0", "|1|1", "genesis-1-1"} {
		_, err := ParseVerseKey(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestCompletedSet(t *testing.T) {
	set := NewCompletedSet(VerseKey{Book: "genesis", Chapter: 1, Verse: 1})
	set.Add(VerseKey{Book: "genesis", Chapter: 1, Verse: 2})

	assert.True(t, set.Has(VerseKey{Book: "genesis", Chapter: 1, Verse: 2}))
	assert.False(t, set.Has(VerseKey{Book: "genesis", Chapter: 1, Verse: 3}))
	assert.Equal(t, map[string]bool{"genesis|1|1": true, "genesis|1|2": true}, set.Strings())
}

func TestLocalDate(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 2026-01-31 20:30 UTC is already February 1st in Seoul
	instant := time.Date(2026, 1, 31, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-01", LocalDate(instant, seoul))
	assert.Equal(t, "2026-01-31", LocalDate(instant, time.UTC))

	assert.NoError(t, ValidateDate("2026-02-28"))
	assert.Error(t, ValidateDate("2026-02-30"))
	assert.Error(t, ValidateDate("20260228"))
}
