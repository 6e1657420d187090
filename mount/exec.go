package mount

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"
)

// ExecMounter mounts images using the mount and umount commands of the host.
type ExecMounter struct {
	// Sudo prefixes every command with sudo.
	Sudo bool
}

// Mount runs mount -o loop on image.
func (e *ExecMounter) Mount(ctx context.Context, image, target string, readOnly bool) error {
	options := "loop"
	if readOnly {
		options += ",ro"
	}
	return e.run(ctx, "mount", "-o", options, image, target)
}

// Unmount runs umount on target.
func (e *ExecMounter) Unmount(ctx context.Context, target string) error {
	return e.run(ctx, "umount", target)
}

func (e *ExecMounter) command(name string, args ...string) (string, []string) {
	if e.Sudo {
		return "sudo", append([]string{name}, args...)
	}
	return name, args
}

func (e *ExecMounter) run(ctx context.Context, name string, args ...string) error {
	name, args = e.command(name, args...)
	klog.V(3).Infof("running %s %s", name, strings.Join(args, " "))

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		return fmt.Errorf("%s: %w (output: %s)", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
