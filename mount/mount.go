// Package mount attaches disk images to a mount point for the duration of a callback.
package mount

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aligator/fatcheck/checkpoint"
	"github.com/spf13/afero"
	"k8s.io/klog/v2"
)

// These errors may occur while mounting an image.
var (
	ErrMountFailure   = errors.New("could not mount the image")
	ErrUnmountFailure = errors.New("could not unmount the image")
	ErrUnsupported    = errors.New("mount backend not supported on this platform")
)

// DefaultTimeout bounds a single mount attempt.
const DefaultTimeout = 30 * time.Second

// Mounter attaches and detaches images.
// Generated mock using mockgen:
//  mockgen -source=mount.go -destination=mock_mounter.go -package mount
type Mounter interface {
	Mount(ctx context.Context, image, target string, readOnly bool) error
	Unmount(ctx context.Context, target string) error
}

// Manager performs scoped mounts. Only one mount is active at a time.
type Manager struct {
	mu      sync.Mutex
	mounter Mounter
	fs      afero.Fs
	timeout time.Duration
}

// NewManager creates a Manager which creates mount points on fs.
// A timeout <= 0 uses DefaultTimeout.
func NewManager(mounter Mounter, fs afero.Fs, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		mounter: mounter,
		fs:      fs,
		timeout: timeout,
	}
}

// WithMount mounts image read only at target, calls fn with a read only view of
// the mounted tree and unmounts again, whatever fn returns.
//
// If the mount fails, fn is not called, no unmount is attempted and an error
// wrapping ErrMountFailure is returned. A mount interrupted by the timeout or
// by cancellation of ctx is force-unmounted, as it may have completed in the
// background.
// Unmount errors are only logged.
func (m *Manager) WithMount(ctx context.Context, image, target string, fn func(root afero.Fs) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fs.MkdirAll(target, 0755); err != nil {
		return checkpoint.Wrap(err, ErrMountFailure)
	}

	mountCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.mounter.Mount(mountCtx, image, target, true); err != nil {
		if mountCtx.Err() != nil {
			m.unmount(target)
		}
		return checkpoint.Wrap(err, ErrMountFailure)
	}
	defer m.unmount(target)

	return fn(afero.NewReadOnlyFs(afero.NewBasePathFs(m.fs, target)))
}

// unmount uses its own context so that cleanup still runs after cancellation.
func (m *Manager) unmount(target string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.mounter.Unmount(ctx, target); err != nil {
		klog.Warningf("%v", checkpoint.Wrap(err, ErrUnmountFailure))
	}
}
