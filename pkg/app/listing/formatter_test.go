package listing

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResponse() *Response {
	return &Response{
		Directory: 64,
		Status:    "corrupted-partial",
		Entries: []Entry{
			{Path: "a.txt", Name: "a.txt", Inode: 70, Seq: 1, Type: "r", Allocated: true},
			{Path: "old.txt", Name: "old.txt", Inode: 75, Seq: 4, Type: "r"},
		},
		Total:    2,
		Deleted:  1,
		Warnings: []string{"entry 64: index_allocation: torn block"},
	}
}

func TestFormatOutput(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		validate func(*testing.T, string)
	}{
		{
			name:   "table format",
			format: "table",
			validate: func(t *testing.T, output string) {
				assert.Contains(t, output, "TYPE")
				assert.Contains(t, output, "r/r")
				assert.Contains(t, output, "70-1")
				assert.Contains(t, output, "75-4")
				assert.Contains(t, output, "Directory 64: corrupted-partial")
				assert.Contains(t, output, "warning: entry 64")

				for _, line := range strings.Split(output, "\n") {
					if strings.HasSuffix(line, "old.txt") {
						assert.Contains(t, line, "*")
					}
					if strings.HasSuffix(line, "a.txt") {
						assert.NotContains(t, line, "*")
					}
				}
			},
		},
		{
			name:   "json format",
			format: "json",
			validate: func(t *testing.T, output string) {
				var decoded Response
				require.NoError(t, json.Unmarshal([]byte(output), &decoded))
				assert.Len(t, decoded.Entries, 2)
				assert.Equal(t, "corrupted-partial", decoded.Status)
			},
		},
		{
			name:   "yaml format",
			format: "yaml",
			validate: func(t *testing.T, output string) {
				var decoded map[string]interface{}
				require.NoError(t, yaml.Unmarshal([]byte(output), &decoded))
				assert.Equal(t, 64, decoded["directory"])
				assert.Contains(t, output, "name: old.txt")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, FormatOutput(&buf, sampleResponse(), tt.format))
			tt.validate(t, buf.String())
		})
	}

	var buf bytes.Buffer
	assert.Error(t, FormatOutput(&buf, sampleResponse(), "xml"))
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, &Response{Status: "ok"}, "table"))
	assert.Contains(t, buf.String(), "No entries found.")
}

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "No entries found", FormatSummary(&Response{}))
	assert.Equal(t, "Found 1 entry", FormatSummary(&Response{Total: 1}))
	assert.Equal(t, "Found 2 entries, 1 deleted, 1 warnings", FormatSummary(sampleResponse()))
}
