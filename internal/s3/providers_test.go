package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_Known(t *testing.T) {
	p, err := Lookup("minio")
	require.NoError(t, err)
	assert.Equal(t, "MinIO", p.Name)
	assert.True(t, p.PathStyle)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	p, err := Lookup("Wasabi")
	require.NoError(t, err)
	assert.Equal(t, "Wasabi", p.Name)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("gopherstore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	_, err = Lookup("")
	require.Error(t, err)
}

func TestResolve_Defaults(t *testing.T) {
	endpoint, region, err := Resolve("", "minio", "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", endpoint)
	assert.Equal(t, "us-east-1", region)
}

func TestResolve_EndpointTemplate(t *testing.T) {
	endpoint, region, err := Resolve("", "backblaze", "eu-central-003")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.eu-central-003.backblazeb2.com", endpoint)
	assert.Equal(t, "eu-central-003", region)
}

func TestResolve_ExplicitEndpointWins(t *testing.T) {
	endpoint, _, err := Resolve("storage.internal:9000/", "garage", "")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.internal:9000", endpoint)
}

func TestUsePathStyle(t *testing.T) {
	assert.True(t, UsePathStyle("garage"))
	assert.True(t, UsePathStyle("backblaze"))
	assert.False(t, UsePathStyle("wasabi"))
	assert.False(t, UsePathStyle("never-heard-of-it"))
}

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, ValidateEndpoint("https://s3.amazonaws.com"))
	assert.NoError(t, ValidateEndpoint("http://localhost:9000"))
	assert.Error(t, ValidateEndpoint("ftp://example.com"))
	assert.Error(t, ValidateEndpoint("https://"))
}
