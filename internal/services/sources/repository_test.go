package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/models"
)

const profileYAML = `profiles:
  - host: docs.example.com
    expected_part: article
    continuation: domain_only
    url_skip_list:
      - logout
      - /admin/
    ui_actions:
      - action: click
        selector: "#accept-cookies"
        wait_ms: 500
  - host: data.example.com
    expected_part: table
    download_raw: true
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.yaml"), []byte(content), 0644))
	return dir
}

func TestResolveProfile(t *testing.T) {
	repo, err := NewRepository(writeProfiles(t, profileYAML), arbor.NewLogger())
	require.NoError(t, err)

	profile, ok := repo.ResolveProfile("https://docs.example.com/guide/intro")
	require.True(t, ok)
	assert.Equal(t, models.PartKindArticle, profile.ExpectedPart)
	assert.Equal(t, models.ContinuationDomainOnly, profile.Continuation)
	assert.Equal(t, []string{"logout", "/admin/"}, profile.URLSkipList)
	require.Len(t, profile.UIActions, 1)
	assert.Equal(t, models.UIActionClick, profile.UIActions[0].Action)
	assert.Equal(t, "#accept-cookies", profile.UIActions[0].Selector)
	assert.Equal(t, 500, profile.UIActions[0].WaitMs)

	profile, ok = repo.ResolveProfile("https://data.example.com/export")
	require.True(t, ok)
	assert.Equal(t, models.PartKindTable, profile.ExpectedPart)
	assert.True(t, profile.DownloadRaw)

	_, ok = repo.ResolveProfile("https://unknown.example.org/")
	assert.False(t, ok)
}

func TestResolveProfileWWWPrefix(t *testing.T) {
	repo, err := NewRepository(writeProfiles(t, profileYAML), arbor.NewLogger())
	require.NoError(t, err)

	_, ok := repo.ResolveProfile("https://www.docs.example.com/guide")
	assert.True(t, ok)
}

func TestMissingDirectoryYieldsEmptyRepository(t *testing.T) {
	repo, err := NewRepository(filepath.Join(t.TempDir(), "nope"), arbor.NewLogger())
	require.NoError(t, err)

	_, ok := repo.ResolveProfile("https://docs.example.com/")
	assert.False(t, ok)
}

func TestMalformedProfileFails(t *testing.T) {
	_, err := NewRepository(writeProfiles(t, "profiles: [notamap"), arbor.NewLogger())
	require.Error(t, err)
}
