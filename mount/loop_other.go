//go:build !linux

package mount

import (
	"context"
)

// LoopMounter is only available on linux.
type LoopMounter struct{}

func NewLoopMounter() *LoopMounter {
	return &LoopMounter{}
}

func (l *LoopMounter) Mount(ctx context.Context, image, target string, readOnly bool) error {
	return ErrUnsupported
}

func (l *LoopMounter) Unmount(ctx context.Context, target string) error {
	return ErrUnsupported
}
