package fattest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFiles(t *testing.T) int {
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func TestCreateFAT32Image_closesDisk(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs /proc/self/fd")
	}

	dir := t.TempDir()
	before := openFiles(t)
	for i, name := range []string{"disk.img", "disk1.img", "disk2.img"} {
		imagePath := filepath.Join(dir, name)
		require.NoError(t, CreateFAT32Image(imagePath, 40, "HDD", KernelEntries()), "image %d", i)

		info, err := os.Stat(imagePath)
		require.NoError(t, err)
		assert.Equal(t, int64(40*1024*1024), info.Size())
	}
	assert.Equal(t, before, openFiles(t), "every image file has to be closed")
}
