package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	dev := Info{Version: "dev", CommitHash: "abc1234def", BuildTime: "2026-01-01"}
	assert.Equal(t, "vvbe dev (commit abc1234def, built 2026-01-01)", dev.String())

	tagged := Info{Version: "v1.2.0", CommitHash: "abc1234def", BuildTime: "2026-01-01"}
	assert.Equal(t, "vvbe v1.2.0 (commit abc1234def, built 2026-01-01)", tagged.String())
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc1234", Info{CommitHash: "abc1234def"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
	assert.Contains(t, info.Platform, "/")
}

func TestTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dev", "0.0.0-dev"},
		{"v1.2.0", "1.2.0"},
		{"1.4", "1.4.0"},
		{"2.0.0-rc.1", "2.0.0-rc.1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tag(tt.in))
		})
	}
}
