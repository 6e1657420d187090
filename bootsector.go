package fatcheck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aligator/fatcheck/checkpoint"
)

const (
	// SectorSize is the size of the boot sector. It is always read as 512 bytes,
	// regardless of the sector size the BPB announces.
	SectorSize = 512

	// BootSignature is the marker stored at offset 510 (bytes 55 AA on disk).
	BootSignature uint16 = 0xAA55

	signatureOffset = 510
)

// These errors may occur while decoding a boot sector.
var (
	ErrTruncatedInput = errors.New("boot sector truncated")
	ErrDecode         = errors.New("could not decode the boot sector")
)

// Layout tells which of the two BPB formats populated a BootSector.
type Layout uint8

const (
	// LayoutLegacy is the FAT12/FAT16 BPB with a fixed root directory.
	LayoutLegacy Layout = iota
	// LayoutFAT32 is the FAT32 extended BPB.
	LayoutFAT32
)

func (l Layout) String() string {
	if l == LayoutFAT32 {
		return "FAT32"
	}
	return "FAT12/16"
}

// BootSector is the decoded, immutable form of a FAT boot sector.
//
// The fields SectorsPerFAT32, RootCluster, FSInfoSector, BackupBootSector, ExtFlags and
// FSVersion are only populated for LayoutFAT32 and are 0 otherwise.
type BootSector struct {
	Layout Layout

	OEMName           string
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16
	TotalSectors16    uint16
	MediaDescriptor   uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	SectorsPerFAT32  uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16

	DriveNumber      uint8
	ExtBootSignature uint8
	VolumeID         uint32
	VolumeLabel      string
	FSType           string

	Signature uint16
}

// Decode reads the boot sector from the first 512 bytes of data.
// It returns ErrTruncatedInput if data is shorter than that. Additional bytes are ignored.
func Decode(data []byte) (*BootSector, error) {
	if len(data) < SectorSize {
		return nil, checkpoint.Wrap(fmt.Errorf("got %d bytes, need %d", len(data), SectorSize), ErrTruncatedInput)
	}

	raw := rawBootSector{}
	if err := binary.Read(bytes.NewReader(data[:SectorSize]), binary.LittleEndian, &raw); err != nil {
		return nil, checkpoint.Wrap(err, ErrDecode)
	}

	b := &BootSector{
		OEMName:           decodeASCII(raw.BSOEMName[:]),
		BytesPerSector:    raw.BytesPerSector,
		SectorsPerCluster: raw.SectorsPerCluster,
		ReservedSectors:   raw.ReservedSectorCount,
		NumFATs:           raw.NumFATs,
		RootEntries:       raw.RootEntryCount,
		TotalSectors16:    raw.TotalSectors16,
		MediaDescriptor:   raw.Media,
		SectorsPerFAT16:   raw.FATSize16,
		SectorsPerTrack:   raw.SectorsPerTrack,
		NumHeads:          raw.NumberOfHeads,
		HiddenSectors:     raw.HiddenSectors,
		TotalSectors32:    raw.TotalSectors32,
		Signature:         raw.Signature,
	}

	// A FAT size of 0 in the common part is the only discriminator between the two layouts.
	// Everything after byte 35 is read differently based on it.
	specific := bytes.NewReader(raw.FATSpecificData[:])
	if raw.FATSize16 == 0 {
		ext := fat32SpecificData{}
		if err := binary.Read(specific, binary.LittleEndian, &ext); err != nil {
			return nil, checkpoint.Wrap(err, ErrDecode)
		}

		b.Layout = LayoutFAT32
		b.SectorsPerFAT32 = ext.FatSize
		b.ExtFlags = ext.ExtFlags
		b.FSVersion = ext.FSVersion
		b.RootCluster = ext.RootCluster
		b.FSInfoSector = ext.FSInfo
		b.BackupBootSector = ext.BkBootSector
		b.DriveNumber = ext.BSDriveNumber
		b.ExtBootSignature = ext.BSBootSignature
		b.VolumeID = ext.BSVolumeID
		b.VolumeLabel = decodeASCII(ext.BSVolumeLabel[:])
		b.FSType = decodeASCII(ext.BSFileSystemType[:])
	} else {
		ext := legacySpecificData{}
		if err := binary.Read(specific, binary.LittleEndian, &ext); err != nil {
			return nil, checkpoint.Wrap(err, ErrDecode)
		}

		b.Layout = LayoutLegacy
		b.DriveNumber = ext.BSDriveNumber
		b.ExtBootSignature = ext.BSBootSignature
		b.VolumeID = ext.BSVolumeID
		b.VolumeLabel = decodeASCII(ext.BSVolumeLabel[:])
		b.FSType = decodeASCII(ext.BSFileSystemType[:])
	}

	return b, nil
}

// ReadBootSector reads exactly one sector from r and decodes it.
// A reader which ends before 512 bytes results in ErrTruncatedInput.
func ReadBootSector(r io.Reader) (*BootSector, error) {
	data, err := ReadSector(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// ReadSector reads the first 512 bytes from r.
// A reader which ends early results in ErrTruncatedInput, other read errors are returned as they are.
func ReadSector(r io.Reader) ([]byte, error) {
	data := make([]byte, SectorSize)
	n, err := io.ReadFull(r, data)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return nil, checkpoint.Wrap(fmt.Errorf("got %d bytes, need %d", n, SectorSize), ErrTruncatedInput)
	}
	if err != nil {
		return nil, checkpoint.From(err)
	}
	return data, nil
}

// ReadSignature returns the little endian value at offset 510.
// It only looks at these two bytes and does not care about the rest of the sector.
func ReadSignature(data []byte) (uint16, error) {
	if len(data) < signatureOffset+2 {
		return 0, checkpoint.Wrap(fmt.Errorf("got %d bytes, need %d", len(data), signatureOffset+2), ErrTruncatedInput)
	}
	return binary.LittleEndian.Uint16(data[signatureOffset:]), nil
}

// decodeASCII never fails: every byte outside of the 7 bit ASCII range is replaced by
// unicode.ReplacementChar. Control characters are kept so that TrimSpace can remove them.
func decodeASCII(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, c := range data {
		if c >= utf8.RuneSelf {
			sb.WriteRune(unicode.ReplacementChar)
			continue
		}
		sb.WriteByte(c)
	}
	return strings.TrimSpace(sb.String())
}
