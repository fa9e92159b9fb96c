package models

import (
	"testing"

	"github.com/GOSC-CNIC/probewatch/lib/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTarget(t *testing.T) {
	target, err := NormalizeTarget("HTTPS", "Example.COM", "/status")
	require.NoError(t, err)
	assert.Equal(t, "https", target.Scheme)
	assert.Equal(t, "example.com", target.Host)
	assert.Equal(t, "https://example.com/status", target.URL())
	assert.Equal(t, SchemeHTTP, target.Type())
}

func TestNormalizeTargetEmptyPath(t *testing.T) {
	target, err := NormalizeTarget("http", "example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "/", target.Path)
	assert.Equal(t, "http://example.com/", target.URL())
}

func TestNormalizeTargetWithPort(t *testing.T) {
	target, err := NormalizeTarget("https", "example.com:8443", "/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443/", target.URL())
}

func TestIdentityIndependentOfCase(t *testing.T) {
	a, err := NormalizeTarget("https", "example.com", "/x")
	require.NoError(t, err)
	b, err := NormalizeTarget("HTTPS", "EXAMPLE.com", "/x")
	require.NoError(t, err)
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestIdentityChangesWithAnyPart(t *testing.T) {
	base, err := NormalizeTarget("https", "example.com", "/x")
	require.NoError(t, err)

	otherScheme, err := NormalizeTarget("http", "example.com", "/x")
	require.NoError(t, err)
	otherHost, err := NormalizeTarget("https", "example.org", "/x")
	require.NoError(t, err)
	otherPath, err := NormalizeTarget("https", "example.com", "/y")
	require.NoError(t, err)

	assert.NotEqual(t, base.Identity(), otherScheme.Identity())
	assert.NotEqual(t, base.Identity(), otherHost.Identity())
	assert.NotEqual(t, base.Identity(), otherPath.Identity())
}

func TestNormalizeTargetRejections(t *testing.T) {
	tests := []struct {
		name               string
		scheme, host, path string
		wantCode           errs.Code
	}{
		{"unsupported scheme", "ftp", "example.com", "/", errs.CodeInvalidScheme},
		{"empty host", "https", "", "/", errs.CodeInvalidHostname},
		{"host with slash", "https", "example.com/x", "/", errs.CodeInvalidHostname},
		{"host with space", "https", "exa mple.com", "/", errs.CodeInvalidHostname},
		{"relative path", "https", "example.com", "x", errs.CodeInvalidURI},
		{"path with fragment", "https", "example.com", "/x#y", errs.CodeInvalidURI},
		{"tcp with uri", "tcp", "example.com:5432", "/db", errs.CodeInvalidURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeTarget(tt.scheme, tt.host, tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errs.CodeOf(err))
		})
	}
}

func TestTCPTargetSentinelPath(t *testing.T) {
	target, err := NormalizeTarget("tcp", "example.com:5432", "")
	require.NoError(t, err)
	assert.Equal(t, TCPPathSentinel, target.Path)
	assert.Equal(t, SchemeTCP, target.Type())
}
