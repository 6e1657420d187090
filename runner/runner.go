// Package runner checks disk images: existence, boot signature, boot sector
// structure and the contents of the mounted filesystem.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aligator/fatcheck"
	"github.com/aligator/fatcheck/checkpoint"
	"github.com/aligator/fatcheck/mount"
	"github.com/aligator/fatcheck/report"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// These errors end the checks of a single image.
var (
	ErrImageNotFound     = errors.New("image not found")
	ErrImageUnreadable   = errors.New("image not readable")
	ErrUnexpectedFailure = errors.New("unexpected failure")
)

// DefaultMountPoint is shared by all test cases.
const DefaultMountPoint = "/tmp/test_mount_kernel"

// TestCase describes one image and what it is expected to contain.
type TestCase struct {
	Path        string
	Kind        fatcheck.Kind
	Expect      []string
	Description string
}

// DefaultCases returns the images checked when nothing else is configured.
func DefaultCases(root string) []TestCase {
	return []TestCase{
		{
			Path:        filepath.Join(root, "disk.img"),
			Kind:        fatcheck.FAT32,
			Expect:      []string{"README.TXT", "TEST", "DOCS", "BIN", "sys"},
			Description: "Primary HDD (HDD0)",
		},
		{
			Path:        filepath.Join(root, "disk1.img"),
			Kind:        fatcheck.FAT32,
			Expect:      []string{"README.TXT", "TEST", "DOCS", "BIN"},
			Description: "Secondary HDD (HDD1)",
		},
		{
			Path:        filepath.Join(root, "floppy.img"),
			Kind:        fatcheck.FAT12,
			Expect:      []string{"README.TXT", "TEST", "DOCS", "BIN"},
			Description: "Floppy disk (FD0)",
		},
	}
}

// Runner executes test cases strictly one after another.
type Runner struct {
	// Fs is used to access the images.
	Fs         afero.Fs
	Mounts     *mount.Manager
	MountPoint string
	Verbose    bool

	// Printer is optional and receives all findings and section headers.
	Printer *report.Printer
}

// Run checks all cases and returns the collected findings.
// No failure of a single case stops the run. If ctx is cancelled, the
// remaining cases are skipped and a Fail finding is recorded.
func (r *Runner) Run(ctx context.Context, cases []TestCase) *report.Report {
	var sinks []report.Sink
	if r.Printer != nil {
		sinks = append(sinks, r.Printer)
		r.Printer.Title("Disk Image Unit Tests")
	}
	rep := report.New(sinks...)

	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			rep.Failf("Run cancelled before %s: %v", filepath.Base(tc.Path), err)
			break
		}

		if r.Printer != nil {
			r.Printer.Section(tc.Description, filepath.Base(tc.Path))
		}
		r.runCase(ctx, rep, tc)
	}

	return rep
}

func (r *Runner) runCase(ctx context.Context, rep *report.Report, tc TestCase) {
	name := filepath.Base(tc.Path)

	defer func() {
		if rec := recover(); rec != nil {
			err := checkpoint.Wrap(fmt.Errorf("%v", rec), ErrUnexpectedFailure)
			klog.Errorf("checking %s: %v", tc.Path, err)
			rep.Failf("Unexpected failure while checking %s: %v", name, rec)
		}
	}()

	if err := r.checkExists(rep, tc.Path); err != nil {
		klog.V(2).Infof("skipping %s: %v", tc.Path, err)
		return
	}

	sector, err := r.readSector(tc.Path)
	if err != nil {
		if errors.Is(err, fatcheck.ErrTruncatedInput) {
			rep.Failf("Truncated boot sector in %s: %v", name, err)
		} else {
			rep.Failf("Failed to read boot sector from %s: %v", name, err)
		}
		return
	}

	checkSignature(rep, name, sector)
	checkStructure(rep, name, sector, tc.Kind)

	if err := ctx.Err(); err != nil {
		rep.Failf("Mount of %s skipped: %v", name, err)
		return
	}
	r.checkContents(ctx, rep, tc)
}

func (r *Runner) checkExists(rep *report.Report, path string) error {
	info, err := r.Fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			rep.Failf("Image not found: %s", path)
			return checkpoint.Wrap(err, ErrImageNotFound)
		}
		rep.Failf("Image not readable: %s: %v", path, err)
		return checkpoint.Wrap(err, ErrImageUnreadable)
	}

	if !info.Mode().IsRegular() {
		rep.Failf("Not a file: %s", path)
		return checkpoint.Wrap(fmt.Errorf("mode %v", info.Mode()), ErrImageUnreadable)
	}

	if info.Size() == 0 {
		rep.Failf("Image is empty: %s", path)
		return checkpoint.Wrap(errors.New("size 0"), ErrImageUnreadable)
	}

	rep.Passf("Image exists: %s (%s, %d bytes)", filepath.Base(path), humanize.IBytes(uint64(info.Size())), info.Size())
	return nil
}

func (r *Runner) readSector(path string) (sector []byte, err error) {
	file, err := r.Fs.Open(path)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrImageUnreadable)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	return fatcheck.ReadSector(file)
}

func checkSignature(rep *report.Report, name string, sector []byte) {
	ok, signature, err := fatcheck.CheckSignature(sector)
	switch {
	case err != nil:
		rep.Failf("Failed to check signature: %v", err)
	case ok:
		rep.Passf("Valid boot signature: %s (0x55AA)", name)
	default:
		rep.Failf("Invalid boot signature: %s (0x%04X, expected 0x%04X)", name, signature, fatcheck.BootSignature)
	}
}

func checkStructure(rep *report.Report, name string, sector []byte, kind fatcheck.Kind) {
	b, err := fatcheck.Decode(sector)
	if err != nil {
		rep.Failf("Failed to decode boot sector of %s: %v", name, err)
		return
	}

	err = fatcheck.Validate(b, kind)
	if errors.Is(err, fatcheck.ErrUnknownKind) {
		rep.Failf("Cannot validate %s: %v", name, err)
		return
	}
	if err != nil {
		rep.Failf("Invalid %s boot sector in %s", kind, name)
		rep.Infof("  Bytes/Sector: %d", b.BytesPerSector)
		rep.Infof("  Sectors/Cluster: %d", b.SectorsPerCluster)
		rep.Infof("  Root Entries: %d", b.RootEntries)
		rep.Infof("  Root Cluster: %d", b.RootCluster)
		rep.Infof("  FS Type: '%s'", b.FSType)
		for _, violation := range multierr.Errors(err) {
			rep.Infof("  %v", violation)
		}
		return
	}

	rep.Passf("Valid %s boot sector: %s", kind, name)
	for _, warning := range b.Warnings() {
		rep.Warnf("%s", warning)
	}
}

func (r *Runner) checkContents(ctx context.Context, rep *report.Report, tc TestCase) {
	name := filepath.Base(tc.Path)

	err := r.Mounts.WithMount(ctx, tc.Path, r.mountPoint(), func(root afero.Fs) error {
		rep.Passf("Successfully mounted: %s", name)

		for _, expected := range tc.Expect {
			if err := ctx.Err(); err != nil {
				return err
			}

			found, err := afero.Exists(root, expected)
			switch {
			case err != nil:
				rep.Failf("Could not check %s: %v", expected, err)
			case found:
				rep.Passf("Found: %s", expected)
			default:
				rep.Failf("Missing: %s", expected)
			}
		}

		if r.Verbose {
			listFiles(rep, root, name)
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, mount.ErrMountFailure):
		rep.Failf("Failed to mount %s: %v", name, err)
	default:
		rep.Failf("Mount test failed: %v", err)
	}
}

func (r *Runner) mountPoint() string {
	if r.MountPoint == "" {
		return DefaultMountPoint
	}
	return r.MountPoint
}

func listFiles(rep *report.Report, root afero.Fs, name string) {
	var files []string
	err := afero.Walk(root, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		klog.Warningf("listing files of %s: %v", name, err)
	}
	if len(files) == 0 {
		return
	}

	rep.Infof("Files in %s:", name)
	for _, file := range files {
		rep.Infof("  %s", file)
	}
}
