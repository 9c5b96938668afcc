package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess(t *testing.T) {
	out := captureStdout(func() {
		Success("tracked %d events", 5)
	})

	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "tracked 5 events")
}

func TestError(t *testing.T) {
	out := captureStderr(func() {
		Error("failed to reach %s", "localhost:8085")
	})

	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "failed to reach localhost:8085")
}

func TestInfo(t *testing.T) {
	out := captureStdout(func() {
		Info("flushed")
	})

	assert.Contains(t, out, "flushed")
	assert.NotContains(t, out, "✓")
}

func TestJSON(t *testing.T) {
	out := captureStdout(func() {
		require.NoError(t, JSON(map[string]interface{}{"event": "purchase", "count": 3}))
	})

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "purchase", parsed["event"])
	assert.Equal(t, float64(3), parsed["count"])

	// Indented output, not a single line.
	assert.Contains(t, out, "  \"event\":")
}

func TestYAML(t *testing.T) {
	out := captureStdout(func() {
		require.NoError(t, YAML(map[string]string{"status": "running"}))
	})

	var parsed map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "running", parsed["status"])
}

func TestPrint(t *testing.T) {
	handled := false
	out := captureStdout(func() {
		var err error
		handled, err = Print("json", []string{"a", "b"})
		require.NoError(t, err)
	})
	assert.True(t, handled)
	assert.Contains(t, out, "\"a\"")

	handled, err := Print("table", []string{"a"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestTable_Render(t *testing.T) {
	table := NewTable([]string{"ID", "NAME", "STATUS"})
	table.AddRow([]string{"t1", "checkout-copy", "running"})
	table.AddRow([]string{"t2", "gift-wrap-upsell", "draft"})

	out := captureStdout(func() {
		table.Render()
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "--")
	assert.Contains(t, lines[2], "checkout-copy")
	assert.Contains(t, lines[3], "gift-wrap-upsell")
}

func TestTable_ColumnWidthsFollowLongestCell(t *testing.T) {
	table := NewTable([]string{"A", "B"})
	table.AddRow([]string{"short", "x"})
	table.AddRow([]string{"a-much-longer-value", "y"})

	out := captureStdout(func() {
		table.Render()
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	// Separator for the first column spans the widest cell.
	assert.Contains(t, lines[1], strings.Repeat("-", len("a-much-longer-value")))
}

func TestTable_Render_Empty(t *testing.T) {
	table := NewTable([]string{"NAME"})

	out := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "----")
}
