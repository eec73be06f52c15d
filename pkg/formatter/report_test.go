package formatter_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/blade-formatter/pkg/formatter"
)

func sampleReport() formatter.Report {
	return formatter.Report{
		Summary: formatter.Summary{
			Paths:           []string{"resources/views"},
			Mode:            formatter.ModeCheck,
			FormattedCount:  1,
			UnchangedCount:  2,
			CachedCount:     3,
			SkippedCount:    1,
			ErrorCount:      1,
			DurationSeconds: 1.5,
			CacheEnabled:    true,
			Concurrency:     4,
			Timestamp:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			SchemaVersion:   formatter.ReportSchemaVersion,
		},
		Files: []formatter.FileInfo{{
			Path:        "a.blade.php",
			Status:      formatter.StatusFormatted,
			Changed:     true,
			Language:    "blade",
			Encoding:    "utf-8",
			SizeBytes:   12,
			CacheStatus: formatter.CacheStatusMiss,
			Diffs:       []formatter.LineDiff{{Path: "a.blade.php", Line: 1, Original: "{{$a}}", Formatted: "{{ $a }}"}},
		}},
		Skipped: []formatter.SkippedInfo{{Path: "b.blade.php", Reason: formatter.SkipReasonEmpty}},
		Errors:  []formatter.ErrorInfo{{Path: "c.blade.php", Error: "syntax error"}},
	}
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatter.WriteReport(&buf, sampleReport(), formatter.OutputFormatText))
	assert.Equal(t, "Formatted: 1, unchanged: 2, cached: 3, skipped: 1, errors: 1 (1.50s)\n", buf.String())
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatter.WriteReport(&buf, sampleReport(), formatter.OutputFormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	summary, ok := decoded["summary"].(map[string]any)
	require.True(t, ok, "summary object missing")
	assert.Equal(t, "check", summary["mode"])
	assert.EqualValues(t, 1, summary["formattedCount"])
	assert.Equal(t, formatter.ReportSchemaVersion, summary["schemaVersion"])

	files, ok := decoded["files"].([]any)
	require.True(t, ok)
	require.Len(t, files, 1)
	file := files[0].(map[string]any)
	assert.Equal(t, "formatted", file["status"])
	assert.Len(t, file["diffs"], 1)
}

func TestWriteReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatter.WriteReport(&buf, sampleReport(), formatter.OutputFormatYAML))

	var decoded struct {
		Summary struct {
			Mode         string `yaml:"mode"`
			CachedCount  int    `yaml:"cachedCount"`
			CacheEnabled bool   `yaml:"cacheEnabled"`
		} `yaml:"summary"`
		Skipped []struct {
			Reason string `yaml:"reason"`
		} `yaml:"skipped"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "check", decoded.Summary.Mode)
	assert.Equal(t, 3, decoded.Summary.CachedCount)
	assert.True(t, decoded.Summary.CacheEnabled)
	require.Len(t, decoded.Skipped, 1)
	assert.Equal(t, formatter.SkipReasonEmpty, decoded.Skipped[0].Reason)
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	err := formatter.WriteReport(&bytes.Buffer{}, sampleReport(), "xml")
	assert.ErrorIs(t, err, formatter.ErrConfigValidation)
}
