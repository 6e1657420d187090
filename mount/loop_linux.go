//go:build linux

package mount

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"gopkg.in/freddierice/go-losetup.v1"
	"k8s.io/klog/v2"
)

// LoopMounter attaches images to a loop device and mounts them as vfat with
// the mount syscall. It needs root privileges.
type LoopMounter struct {
	mu      sync.Mutex
	devices map[string]losetup.Device
}

// NewLoopMounter returns a LoopMounter without attached devices.
func NewLoopMounter() *LoopMounter {
	return &LoopMounter{devices: make(map[string]losetup.Device)}
}

// Mount attaches image to a free loop device and mounts it at target.
func (l *LoopMounter) Mount(ctx context.Context, image, target string, readOnly bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	device, err := losetup.Attach(image, 0, readOnly)
	if err != nil {
		return fmt.Errorf("attach %s: %w", image, err)
	}
	klog.V(3).Infof("attached %s to %s", image, device.Path())

	var flags uintptr
	if readOnly {
		flags |= unix.MS_RDONLY
	}

	done := make(chan error, 1)
	go func() {
		done <- unix.Mount(device.Path(), target, "vfat", flags, "")
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		// The syscall may still succeed; the device stays registered so that
		// a following Unmount can release it.
		l.register(target, device)
		return ctx.Err()
	}

	if err != nil {
		return multierr.Append(fmt.Errorf("mount %s: %w", device.Path(), err), device.Detach())
	}

	l.register(target, device)
	return nil
}

// Unmount unmounts target and detaches its loop device.
func (l *LoopMounter) Unmount(ctx context.Context, target string) error {
	l.mu.Lock()
	device, ok := l.devices[target]
	delete(l.devices, target)
	l.mu.Unlock()

	err := unix.Unmount(target, 0)
	if err != nil {
		err = fmt.Errorf("unmount %s: %w", target, err)
	}
	if ok {
		err = multierr.Append(err, device.Detach())
	}
	return err
}

func (l *LoopMounter) register(target string, device losetup.Device) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.devices[target] = device
}
