/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	ver := Get()
	require.NotEmpty(t, ver)
	require.Equal(t, ver, Get(), "version should be stable across calls")
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent("shopgenfy")
	require.True(t, strings.HasPrefix(ua, "shopgenfy/"))
	require.Equal(t, "shopgenfy/"+Get(), ua)
}
