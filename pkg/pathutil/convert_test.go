package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{"simple relative path", "/srv/shop/src/Order.php", "/srv/shop", "src/Order.php"},
		{"root level file", "/srv/shop/index.php", "/srv/shop", "index.php"},
		{"same directory", "/srv/shop", "/srv/shop", "."},
		{"already relative path", "src/Order.php", "/srv/shop", "src/Order.php"},
		{"path outside root", "/other/Order.php", "/srv/shop", "/other/Order.php"},
		{"sibling with dotted prefix", "/srv/shop/..cache/a.php", "/srv/shop", "..cache/a.php"},
		{"empty root directory", "/srv/shop/a.php", "", "/srv/shop/a.php"},
		{"empty path", "", "/srv/shop", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToRelative(tt.absPath, tt.rootDir))
		})
	}
}

func TestToAbsolute(t *testing.T) {
	root := filepath.FromSlash("/srv/shop")
	assert.Equal(t, filepath.Join(root, "src", "Order.php"), ToAbsolute("src/Order.php", root))
	assert.Equal(t, filepath.Clean(filepath.FromSlash("/tmp/x.php")), ToAbsolute("/tmp/x.php", root))
	assert.Equal(t, "", ToAbsolute("", root))
}

func TestKey(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	assert.Equal(t, "src/Order.php", Key("/srv/shop/src/Order.php", "/srv/shop"))
	assert.Equal(t, "src/Order.php", Key("./src/Order.php", "/srv/shop"))
	assert.Equal(t, "src/Order.php", Key("src//Order.php", "/srv/shop"))
	assert.Equal(t, "/other/x.php", Key("/other/x.php", "/srv/shop"))
}
