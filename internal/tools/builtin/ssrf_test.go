package builtin

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFetchTargetBlocksPrivateRanges(t *testing.T) {
	ctx := context.Background()

	for _, url := range []string{
		"http://127.0.0.1/admin",
		"http://10.0.0.1:8080/api",
		"http://172.16.5.5/",
		"http://192.168.1.1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]:8080/",
	} {
		assert.Error(t, checkFetchTarget(ctx, url, nil), url)
	}
}

func TestCheckFetchTargetAllowsPublicIP(t *testing.T) {
	assert.NoError(t, checkFetchTarget(context.Background(), "http://8.8.8.8/path", nil))
}

func TestCheckFetchTargetBlocksSchemes(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, checkFetchTarget(ctx, "file:///etc/passwd", nil))
	assert.Error(t, checkFetchTarget(ctx, "ftp://host/data", nil))
	assert.Error(t, checkFetchTarget(ctx, "gopher://host/", nil))
}

func TestCheckFetchTargetAllowedHostsBypass(t *testing.T) {
	// Allow-listed names skip resolution entirely.
	err := checkFetchTarget(context.Background(), "http://localhost:9000/hook", []string{"localhost"})
	assert.NoError(t, err)
}

func TestIsBlockedIP(t *testing.T) {
	assert.True(t, isBlockedIP(net.ParseIP("127.0.0.1")))
	assert.True(t, isBlockedIP(net.ParseIP("192.168.0.10")))
	assert.True(t, isBlockedIP(net.ParseIP("fe80::1")))
	assert.False(t, isBlockedIP(net.ParseIP("1.1.1.1")))
	assert.False(t, isBlockedIP(net.ParseIP("2606:4700::1111")))
}
