package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInstrumenter_DefaultsToNoop(t *testing.T) {
	inst := GetInstrumenter(context.Background())
	_, ok := inst.(*NoopInstrumenter)
	assert.True(t, ok)
}

func TestLogInstrumenter_NestedSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	inst := NewLogInstrumenter(logger)

	ctx, parent := inst.StartSpan(context.Background(), "cascade", "delete", "cascade.delete")
	_, child := inst.StartSpan(ctx, "remote", "client", "remote.delete")
	assert.Equal(t, parent.TraceID(), child.TraceID())

	child.SetEntity("company", "c1")
	child.SetStatus("ok")
	child.SetMetadata("deleted", 3)
	child.End()
	child.End()
	parent.End()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2, "End must be idempotent")

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "remote.delete", first["message"])
	assert.Equal(t, parent.SpanID(), first["parent_span_id"])
	assert.Equal(t, "company", first["entity"])
	assert.Equal(t, "c1", first["record_id"])
	assert.Equal(t, float64(3), first["deleted"])
}
