package push

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPayloadSinglePart(t *testing.T) {
	parts := SplitPayload([]byte("hello"), "m-1")
	require.Len(t, parts, 1)
	assert.Equal(t, "m-1", parts[0].MessageID)
	assert.Equal(t, 1, parts[0].PartNumber)
	assert.Equal(t, 1, parts[0].TotalParts)
	assert.Equal(t, "hello", parts[0].Data)
}

func TestSplitPayloadRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 5000)
	parts := SplitPayload(payload, "m-1")
	require.Len(t, parts, 2)
	assert.Equal(t, MaxPayloadSize, len(parts[0].Data))
	assert.Equal(t, 5000-MaxPayloadSize, len(parts[1].Data))

	var sb strings.Builder
	for i, p := range parts {
		assert.Equal(t, i+1, p.PartNumber)
		assert.Equal(t, 2, p.TotalParts)
		assert.Equal(t, "m-1", p.MessageID)
		sb.WriteString(p.Data)
	}
	assert.Equal(t, string(payload), sb.String())
}

func TestSplitPayloadExactBoundary(t *testing.T) {
	parts := SplitPayload(bytes.Repeat([]byte("x"), MaxPayloadSize), "m-1")
	assert.Len(t, parts, 1)
}

func TestSplitPayloadSentinelGetsGeneratedID(t *testing.T) {
	a := SplitPayload([]byte("data"), "-1")
	b := SplitPayload([]byte("data"), "-1")
	require.Len(t, a, 1)
	assert.NotEmpty(t, a[0].MessageID)
	assert.NotEqual(t, "-1", a[0].MessageID)
	assert.NotEqual(t, a[0].MessageID, b[0].MessageID, "each sentinel push correlates independently")
}

// A multi-byte rune straddling the size limit must move to the next part
// whole. Each part travels as a JSON string; encoding a severed sequence
// would turn it into replacement runes and the reassembled payload would no
// longer match byte for byte.
func TestSplitPayloadNeverCutsRunes(t *testing.T) {
	payload := append(bytes.Repeat([]byte("x"), MaxPayloadSize-1), []byte("éé")...)
	parts := SplitPayload(payload, "m-1")
	require.Len(t, parts, 2)
	assert.Equal(t, MaxPayloadSize-1, len(parts[0].Data), "boundary backs off the straddling rune")

	var sb strings.Builder
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p.Data))

		// survive the trip through the notification's JSON data map
		raw, err := json.Marshal(map[string]string{"data": p.Data})
		require.NoError(t, err)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(raw, &decoded))
		sb.WriteString(decoded["data"])
	}
	assert.Equal(t, string(payload), sb.String())
}

func TestSplitPayloadEmpty(t *testing.T) {
	parts := SplitPayload(nil, "m-1")
	require.Len(t, parts, 1)
	assert.Equal(t, "", parts[0].Data)
}
