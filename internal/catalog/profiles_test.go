package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesFromCredentialsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	content := `[default]
aws_access_key_id = AKIAEXAMPLE
aws_secret_access_key = secret

[audit]
aws_access_key_id = AKIAAUDIT
aws_secret_access_key = secret

[prod-readonly]
aws_access_key_id = AKIAPROD
aws_secret_access_key = secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	assert.Equal(t, []string{"audit", "default", "prod-readonly"}, Profiles(path))
}

func TestProfilesMissingFile(t *testing.T) {
	assert.Equal(t, []string{"default"}, Profiles(filepath.Join(t.TempDir(), "nope")))
}

func TestProfilesEmptyPath(t *testing.T) {
	assert.Equal(t, []string{"default"}, Profiles(""))
}
