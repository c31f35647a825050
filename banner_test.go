package devreload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderBanner(t *testing.T) {
	banner := RenderBanner("api", 8000, 7, false)
	assert.Contains(t, banner, "devreload "+Version)
	assert.Contains(t, banner, "serving api on port 8000")
	assert.Contains(t, banner, "watching 7 files")

	manual := RenderBanner("api", 9000, 7, true)
	assert.Contains(t, manual, "manual reload")
	assert.NotContains(t, manual, "watching")
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "file change", ChangeModified.Reason())
	assert.Equal(t, "file removal", ChangeRemoved.Reason())
	assert.Equal(t, "removed", ChangeRemoved.String())
	assert.Equal(t, "unknown", ChangeUnknown.String())

	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())

	assert.Equal(t, "file", SourceFile.String())
	assert.Equal(t, "module", SourceModule.String())
}
