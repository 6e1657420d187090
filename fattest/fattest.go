// Package fattest provides boot sectors and FAT images for tests.
//
// Sectors are built byte by byte from Fields, so single fields can be broken on purpose.
// Complete images are formatted with go-diskfs.
package fattest

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"go.uber.org/multierr"
)

// Fields contains the values written into a boot sector by Bytes.
// If SectorsPerFAT16 is 0 the FAT32 extended BPB is written, otherwise the FAT12/16 one.
type Fields struct {
	OEMName           string
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	TotalSectors32    uint32

	SectorsPerFAT32  uint32
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16

	VolumeID    uint32
	VolumeLabel string
	FSType      string

	Signature uint16
}

// FAT32 returns the fields of a small but valid FAT32 volume.
func FAT32() Fields {
	return Fields{
		OEMName:           "MSWIN4.1",
		BytesPerSector:    512,
		SectorsPerCluster: 4,
		ReservedSectors:   32,
		NumFATs:           2,
		Media:             0xF8,
		TotalSectors32:    131072,
		SectorsPerFAT32:   256,
		RootCluster:       2,
		FSInfoSector:      1,
		BackupBootSector:  6,
		VolumeID:          0x1234ABCD,
		VolumeLabel:       "KERNEL",
		FSType:            "FAT32",
		Signature:         0xAA55,
	}
}

// FAT12 returns the fields of a 1.44M floppy.
func FAT12() Fields {
	return Fields{
		OEMName:           "MSDOS5.0",
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumFATs:           2,
		RootEntries:       224,
		TotalSectors16:    2880,
		Media:             0xF0,
		SectorsPerFAT16:   9,
		VolumeID:          0x0BADF00D,
		VolumeLabel:       "FLOPPY",
		FSType:            "FAT12",
		Signature:         0xAA55,
	}
}

// Bytes renders f as a 512 byte boot sector.
func (f Fields) Bytes() []byte {
	data := make([]byte, 512)
	data[0], data[1], data[2] = 0xEB, 0x58, 0x90
	putString(data[3:11], f.OEMName)

	le := binary.LittleEndian
	le.PutUint16(data[11:], f.BytesPerSector)
	data[13] = f.SectorsPerCluster
	le.PutUint16(data[14:], f.ReservedSectors)
	data[16] = f.NumFATs
	le.PutUint16(data[17:], f.RootEntries)
	le.PutUint16(data[19:], f.TotalSectors16)
	data[21] = f.Media
	le.PutUint16(data[22:], f.SectorsPerFAT16)
	le.PutUint32(data[32:], f.TotalSectors32)

	if f.SectorsPerFAT16 == 0 {
		le.PutUint32(data[36:], f.SectorsPerFAT32)
		le.PutUint32(data[44:], f.RootCluster)
		le.PutUint16(data[48:], f.FSInfoSector)
		le.PutUint16(data[50:], f.BackupBootSector)
		data[64] = 0x80
		data[66] = 0x29
		le.PutUint32(data[67:], f.VolumeID)
		putString(data[71:82], f.VolumeLabel)
		putString(data[82:90], f.FSType)
	} else {
		data[38] = 0x29
		le.PutUint32(data[39:], f.VolumeID)
		putString(data[43:54], f.VolumeLabel)
		putString(data[54:62], f.FSType)
	}

	le.PutUint16(data[510:], f.Signature)
	return data
}

// putString writes s space padded into dst, cutting it if it is too long.
func putString(dst []byte, s string) {
	padded := s + strings.Repeat(" ", len(dst))
	copy(dst, padded[:len(dst)])
}

// Entry is a file or directory created inside an image.
type Entry struct {
	Path    string
	Dir     bool
	Content []byte
}

// KernelEntries returns the content the disk images of the kernel project are expected to have.
func KernelEntries() []Entry {
	return []Entry{
		{Path: "/README.TXT", Content: []byte("Test disk image\n")},
		{Path: "/TEST", Dir: true},
		{Path: "/TEST/HELLO.TXT", Content: []byte("Hello World\n")},
		{Path: "/DOCS", Dir: true},
		{Path: "/BIN", Dir: true},
	}
}

// CreateFAT32Image formats a new FAT32 image of sizeMB at imagePath and creates all entries.
// Parent directories of entries have to be listed before their children.
func CreateFAT32Image(imagePath string, sizeMB int64, label string, entries []Entry) (err error) {
	d, err := diskfs.Create(imagePath, sizeMB*1024*1024, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("failed to create disk: %w", err)
	}
	defer func() {
		err = multierr.Append(err, d.Close())
	}()

	fs, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: label,
	})
	if err != nil {
		return fmt.Errorf("failed to create filesystem: %w", err)
	}

	for _, entry := range entries {
		p := path.Clean("/" + entry.Path)
		if entry.Dir {
			if err := fs.Mkdir(p); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", p, err)
			}
			continue
		}

		file, err := fs.OpenFile(p, os.O_CREATE|os.O_RDWR|os.O_TRUNC)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", p, err)
		}
		_, err = file.Write(entry.Content)
		file.Close()
		if err != nil {
			return fmt.Errorf("failed to write file %s: %w", p, err)
		}
	}

	return nil
}
