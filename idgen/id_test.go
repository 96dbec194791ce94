package idgen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeRoundTrip(t *testing.T) {
	tests := []Parts{
		{},
		{Timestamp: 5000, DatacenterID: 1, WorkerID: 1, Sequence: 0},
		{Timestamp: 123456789, DatacenterID: 17, WorkerID: 4, Sequence: 2048},
		{Timestamp: MaxTimestamp, DatacenterID: MaxDatacenterID, WorkerID: MaxWorkerID, Sequence: MaxSequence},
	}

	for _, p := range tests {
		id, err := Compose(p)
		require.NoError(t, err)
		assert.Equal(t, p, id.Decompose())
		assert.Zero(t, id>>63)
	}

	all, _ := Compose(tests[3])
	assert.Equal(t, ID(1<<63-1), all, "every non-reserved bit is used")
}

func TestComposeRejectsOutOfRange(t *testing.T) {
	bad := map[string]Parts{
		"timestamp":  {Timestamp: MaxTimestamp + 1},
		"negative":   {Timestamp: -1},
		"datacenter": {DatacenterID: 32},
		"worker":     {WorkerID: 32},
		"sequence":   {Sequence: MaxSequence + 1},
	}
	for name, p := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := Compose(p)
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestFieldsDoNotOverlap(t *testing.T) {
	id, err := Compose(Parts{WorkerID: MaxWorkerID})
	require.NoError(t, err)
	assert.Equal(t, Parts{WorkerID: MaxWorkerID}, id.Decompose())

	id, err = Compose(Parts{DatacenterID: MaxDatacenterID})
	require.NoError(t, err)
	assert.Equal(t, Parts{DatacenterID: MaxDatacenterID}, id.Decompose())
}

func TestStringEncodings(t *testing.T) {
	id := ID(20971655168)

	assert.Equal(t, "20971655168", id.String())
	assert.Equal(t, int64(20971655168), id.Int64())

	parsed, err := ParseString("20971655168")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	b62 := id.Base62()
	back, err := ParseBase62(b62)
	require.NoError(t, err)
	assert.Equal(t, id, back)
	assert.Equal(t, "0", ID(0).Base62())
	assert.Equal(t, "Z", ID(61).Base62())
	assert.Equal(t, "10", ID(62).Base62())

	top := ID(1<<63 - 1)
	assert.Equal(t, "aZl8N0y58M7", top.Base62())
	back, err = ParseBase62(top.Base62())
	require.NoError(t, err)
	assert.Equal(t, top, back)

	for _, s := range []string{"", "abc-", "zzzzzzzzzzzz", "zzzzzzzzzzz", "aZl8N0y58M8"} {
		_, err := ParseBase62(s)
		assert.ErrorIs(t, err, ErrInvalidID, s)
	}
	for _, s := range []string{"", "-1", "abc", "9223372036854775808"} {
		_, err := ParseString(s)
		assert.ErrorIs(t, err, ErrInvalidID, s)
	}
}

func TestJSON(t *testing.T) {
	type payload struct {
		ID ID `json:"id"`
	}

	data, err := json.Marshal(payload{ID: 9007199254740993})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"9007199254740993"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, ID(9007199254740993), p.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":42}`), &p))
	assert.Equal(t, ID(42), p.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":null}`), &p))
	assert.Equal(t, ID(42), p.ID, "null leaves the id unchanged")

	id := ID(7)
	require.NoError(t, id.UnmarshalJSON([]byte("null")))
	assert.Equal(t, ID(7), id)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"x"}`), &p))
}

func TestSQL(t *testing.T) {
	v, err := ID(77).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(77), v)

	var id ID
	for _, src := range []any{int64(77), []byte("77"), "77"} {
		require.NoError(t, id.Scan(src))
		assert.Equal(t, ID(77), id)
	}
	require.NoError(t, id.Scan(nil))
	assert.Zero(t, id)

	assert.Error(t, id.Scan(int64(-1)))
	assert.Error(t, id.Scan(3.5))
}

func TestUUID(t *testing.T) {
	gen, err := NewUUID()
	require.NoError(t, err)
	assert.Equal(t, "v7", gen.Version())

	a, b := gen.Next(), gen.Next()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14])

	v4, err := NewUUID(WithUUIDVersion("v4"))
	require.NoError(t, err)
	assert.Equal(t, byte('4'), v4.Next()[14])

	_, err = NewUUID(WithUUIDVersion("v1"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
