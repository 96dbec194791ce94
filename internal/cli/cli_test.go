package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/xerrors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGen(t *testing.T) {
	out, err := run(t, "gen", "--worker", "7", "--datacenter", "3", "--count", "5")
	require.NoError(t, err)

	lines := strings.Fields(out)
	require.Len(t, lines, 5)

	var prev idgen.ID
	for _, line := range lines {
		id, err := idgen.ParseString(line)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id

		parts := id.Decompose()
		assert.EqualValues(t, 7, parts.WorkerID)
		assert.EqualValues(t, 3, parts.DatacenterID)
	}
}

func TestGenFormats(t *testing.T) {
	out, err := run(t, "gen", "-f", "base62")
	require.NoError(t, err)
	_, err = idgen.ParseBase62(strings.TrimSpace(out))
	assert.NoError(t, err)

	out, err = run(t, "gen", "-w", "2", "-f", "json")
	require.NoError(t, err)
	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.EqualValues(t, 2, d["worker_id"])
}

func TestGenRejectsInvalidWorker(t *testing.T) {
	_, err := run(t, "gen", "--worker", "32")
	assert.ErrorIs(t, err, idgen.ErrInvalidConfiguration)

	_, err = run(t, "gen", "--count", "0")
	assert.Error(t, err)
}

func TestGenRejectsUnknownFormat(t *testing.T) {
	for _, format := range []string{"hex", "Decimal", ""} {
		t.Run(format, func(t *testing.T) {
			out, err := run(t, "gen", "-f", format)
			require.Error(t, err)
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
			assert.True(t, strings.HasPrefix(out, "Error: "), "no IDs are printed: %q", out)
		})
	}
}

func TestDecode(t *testing.T) {
	id := idgen.ID(20971655169)

	for _, args := range [][]string{
		{"decode", "20971655169"},
		{"decode", id.Base62()},
		{"decode", "--base62", id.Base62()},
	} {
		out, err := run(t, args...)
		require.NoError(t, err, args)

		var d map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &d))
		assert.Equal(t, "20971655169", d["id"])
		assert.EqualValues(t, 5000, d["timestamp"])
		assert.EqualValues(t, 1, d["datacenter_id"])
		assert.EqualValues(t, 1, d["worker_id"])
		assert.EqualValues(t, 1, d["sequence"])
		assert.Equal(t, "2021-01-01T00:00:05Z", d["time"])
	}
}

func TestDecodeCustomEpoch(t *testing.T) {
	out, err := run(t, "decode", "--epoch", "0", "20971655169")
	require.NoError(t, err)
	assert.Contains(t, out, `"time": "1970-01-01T00:00:05Z"`)
}

func TestDecodeErrors(t *testing.T) {
	_, err := run(t, "decode")
	assert.Error(t, err)

	_, err = run(t, "decode", "9223372036854775808")
	assert.ErrorIs(t, err, idgen.ErrInvalidID)

	_, err = run(t, "decode", "bad-id")
	assert.ErrorIs(t, err, idgen.ErrInvalidID)
}
