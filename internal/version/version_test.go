package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.Contains(t, Short(), Version)
	assert.Contains(t, Detailed(), Revision)
	assert.True(t, strings.HasPrefix(UserAgent(), AppName+"/"+Version))

	info := Current()
	assert.Equal(t, AppName, info.App)
	assert.Contains(t, info.Platform, "/")
}

func TestApplyBuildInfo(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})

	tests := []struct {
		name                         string
		version, revision, buildDate string
		mainVersion                  string
		settings                     map[string]string
		wantVersion, wantRevision    string
		wantBuildDate                string
	}{
		{
			name:    "populates dev defaults",
			version: devVersion, revision: "HEAD",
			mainVersion: "v1.4.0",
			settings: map[string]string{
				"vcs.revision": "abcdef1234567890",
				"vcs.modified": "true",
				"vcs.time":     "2026-01-02T03:04:05Z",
			},
			wantVersion: "1.4.0", wantRevision: "abcdef123456-dirty", wantBuildDate: "2026-01-02T03:04:05Z",
		},
		{
			name:    "ldflags win",
			version: "2.0.0", revision: "deadbeef", buildDate: "from-ldflags",
			mainVersion: "v9.9.9",
			settings:    map[string]string{"vcs.revision": "abc", "vcs.time": "x"},
			wantVersion: "2.0.0", wantRevision: "deadbeef", wantBuildDate: "from-ldflags",
		},
		{
			name:    "devel main version is ignored",
			version: devVersion, revision: "HEAD",
			mainVersion: "(devel)",
			settings:    map[string]string{},
			wantVersion: devVersion, wantRevision: "HEAD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Revision, BuildDate = tt.version, tt.revision, tt.buildDate
			applyBuildInfo(tt.mainVersion, tt.settings)
			assert.Equal(t, tt.wantVersion, Version)
			assert.Equal(t, tt.wantRevision, Revision)
			assert.Equal(t, tt.wantBuildDate, BuildDate)
		})
	}
}
