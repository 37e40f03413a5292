package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, DefaultLimit, Clamp(0))
	assert.Equal(t, DefaultLimit, Clamp(-5))
	assert.Equal(t, 25, Clamp(25))
	assert.Equal(t, MaxLimit, Clamp(MaxLimit+1))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	cur := Encode(ts, "btx_abc123")

	decoded, err := Decode(cur)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(ts))
	assert.Equal(t, "btx_abc123", decoded.ID)
}

func TestDecodeEmpty(t *testing.T) {
	decoded, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("not-base64!!")
	assert.Error(t, err)

	_, err = Decode("aGVsbG8") // valid base64, no separator
	assert.Error(t, err)
}

func TestCursorArgs(t *testing.T) {
	ts, id := CursorArgs(nil)
	assert.Nil(t, ts)
	assert.Empty(t, id)

	at := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	ts, id = CursorArgs(&Cursor{CreatedAt: at, ID: "sch_1"})
	assert.Equal(t, at, ts)
	assert.Equal(t, "sch_1", id)
}

type item struct {
	id string
	at time.Time
}

func TestComputePage(t *testing.T) {
	base := time.Now()
	items := []item{
		{"a", base},
		{"b", base.Add(-time.Minute)},
		{"c", base.Add(-2 * time.Minute)},
	}

	// Fetched limit+1 → has more.
	page, next, more := ComputePage(items, 2, func(i item) (time.Time, string) { return i.at, i.id })
	assert.Len(t, page, 2)
	assert.True(t, more)
	assert.NotEmpty(t, next)

	// Fits within limit → no cursor.
	page, next, more = ComputePage(items, 5, func(i item) (time.Time, string) { return i.at, i.id })
	assert.Len(t, page, 3)
	assert.False(t, more)
	assert.Empty(t, next)
}
