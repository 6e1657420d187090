package main

import (
	"os"
	"path/filepath"

	"github.com/aligator/fatcheck/fattest"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	dest   = "testdata"
	sizeMB = int64(64)
)

// images are the FAT32 disk images of the kernel project.
// The floppy image is not generated, as go-diskfs cannot format FAT12.
var images = []struct {
	name    string
	label   string
	entries []fattest.Entry
}{
	{
		name:    "disk.img",
		label:   "HDD0",
		entries: append(fattest.KernelEntries(), fattest.Entry{Path: "/sys", Dir: true}),
	},
	{
		name:    "disk1.img",
		label:   "HDD1",
		entries: fattest.KernelEntries(),
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create the FAT32 test images. Can be executed using 'go generate' from the project root.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}

		for _, image := range images {
			imagePath := filepath.Join(dest, image.name)

			// go-diskfs refuses to overwrite existing images.
			if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
				return err
			}

			if err := fattest.CreateFAT32Image(imagePath, sizeMB, image.label, image.entries); err != nil {
				return err
			}
			klog.Infof("created %s", imagePath)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&dest, "output", "o", dest, "Directory to write the images to")
	generateCmd.Flags().Int64Var(&sizeMB, "size", sizeMB, "Size of each image in MiB")
}

func main() {
	if err := generateCmd.Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
