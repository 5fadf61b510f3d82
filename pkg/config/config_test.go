package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgaunet/s3box/pkg/config"
)

func TestReadYamlCnxFile_ValidFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "valid_config.yaml")

	validYaml := `
s3endpoint: https://s3.example.com
accesskey: test-access-key
secretkey: test-secret-key
s3region: us-west-2
ssoawsprofile: test-profile
bucket: test-bucket
forcepathstyle: true
username: alice
loglevel: debug
conflictpolicy: skip-if-exists
share:
  backend: postgres
  databaseurl: postgres://localhost/s3box
  purgeschedule: "@daily"
serve:
  addr: 127.0.0.1:9000
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(validYaml), 0o600))

	cfg, err := config.ReadYamlCnxFile(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "https://s3.example.com", cfg.S3endpoint)
	assert.Equal(t, "test-access-key", cfg.S3accessKey)
	assert.Equal(t, "test-secret-key", cfg.S3secretKey)
	assert.Equal(t, "us-west-2", cfg.S3Region)
	assert.Equal(t, "test-profile", cfg.SsoAwsProfile)
	assert.Equal(t, "test-bucket", cfg.Bucket)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "skip-if-exists", cfg.ConflictPolicy)
	assert.Equal(t, config.ShareBackendPostgres, cfg.ShareBackend())
	assert.Equal(t, "postgres://localhost/s3box", cfg.Share.DatabaseURL)
	assert.Equal(t, "@daily", cfg.PurgeSchedule())
	assert.Equal(t, "127.0.0.1:9000", cfg.ServeAddr())
}

func TestReadYamlCnxFile_InvalidYaml(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid_config.yaml")
	invalidYaml := `
bucket: test-bucket
forcepathstyle: not-a-bool
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(invalidYaml), 0o600))

	_, err := config.ReadYamlCnxFile(tmpFile)
	assert.Error(t, err)
}

func TestReadYamlCnxFile_NonExistentFile(t *testing.T) {
	_, err := config.ReadYamlCnxFile("/path/to/non-existent/file.yaml")
	assert.Error(t, err)
}

func TestReadYamlCnxFile_EmptyFileUsesDefaults(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "empty_config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte{}, 0o600))

	cfg, err := config.ReadYamlCnxFile(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, config.Config{}, cfg)
	assert.Equal(t, config.ShareBackendS3, cfg.ShareBackend())
	assert.Equal(t, config.DefaultServeAddr, cfg.ServeAddr())
	assert.Equal(t, config.DefaultPurgeSchedule, cfg.PurgeSchedule())
}

func TestWriteYamlCnxFile_RoundTrip(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := config.Config{
		S3accessKey: "AKIA",
		S3secretKey: "secret",
		S3Region:    "eu-west-3",
		Bucket:      "files",
		Username:    "alice",
	}

	require.NoError(t, config.WriteYamlCnxFile(tmpFile, want))

	info, err := os.Stat(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := config.ReadYamlCnxFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	complete := config.Config{
		S3accessKey: "AKIA",
		S3secretKey: "secret",
		S3Region:    "us-east-1",
		Bucket:      "files",
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
		missing string
	}{
		{name: "complete", mutate: func(*config.Config) {}},
		{name: "missing access key", mutate: func(c *config.Config) { c.S3accessKey = "" }, wantErr: true, missing: "accesskey"},
		{name: "blank secret key", mutate: func(c *config.Config) { c.S3secretKey = "  " }, wantErr: true, missing: "secretkey"},
		{name: "missing region", mutate: func(c *config.Config) { c.S3Region = "" }, wantErr: true, missing: "s3region"},
		{name: "missing bucket", mutate: func(c *config.Config) { c.Bucket = "" }, wantErr: true, missing: "bucket"},
		{
			name: "sso profile replaces keys",
			mutate: func(c *config.Config) {
				c.S3accessKey, c.S3secretKey, c.SsoAwsProfile = "", "", "dev"
			},
		},
		{
			name:    "postgres backend without url",
			mutate:  func(c *config.Config) { c.Share.Backend = config.ShareBackendPostgres },
			wantErr: true,
			missing: "databaseurl",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Share.Backend = "redis" },
			wantErr: true,
			missing: "redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := complete
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("S3BOX_BUCKET", "from-env")
	t.Setenv("S3BOX_USER", " bob ")
	t.Setenv("S3BOX_REGION", "")

	cfg := config.ApplyEnv(config.Config{Bucket: "from-file", S3Region: "eu-west-1"})

	assert.Equal(t, "from-env", cfg.Bucket)
	assert.Equal(t, "bob", cfg.Username)
	assert.Equal(t, "eu-west-1", cfg.S3Region, "empty variables must not clear file values")
}
