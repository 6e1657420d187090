package fatcheck

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/iotest"

	"github.com/aligator/fatcheck/fattest"
)

func TestDecode(t *testing.T) {
	type args struct {
		data []byte
	}
	tests := []struct {
		name    string
		args    args
		want    *BootSector
		wantErr error
	}{
		{
			name: "FAT32 extended BPB",
			args: args{
				data: fattest.FAT32().Bytes(),
			},
			want: &BootSector{
				Layout:            LayoutFAT32,
				OEMName:           "MSWIN4.1",
				BytesPerSector:    512,
				SectorsPerCluster: 4,
				ReservedSectors:   32,
				NumFATs:           2,
				MediaDescriptor:   0xF8,
				TotalSectors32:    131072,
				SectorsPerFAT32:   256,
				RootCluster:       2,
				FSInfoSector:      1,
				BackupBootSector:  6,
				DriveNumber:       0x80,
				ExtBootSignature:  0x29,
				VolumeID:          0x1234ABCD,
				VolumeLabel:       "KERNEL",
				FSType:            "FAT32",
				Signature:         0xAA55,
			},
		},
		{
			name: "FAT12 floppy",
			args: args{
				data: fattest.FAT12().Bytes(),
			},
			want: &BootSector{
				Layout:            LayoutLegacy,
				OEMName:           "MSDOS5.0",
				BytesPerSector:    512,
				SectorsPerCluster: 1,
				ReservedSectors:   1,
				NumFATs:           2,
				RootEntries:       224,
				TotalSectors16:    2880,
				MediaDescriptor:   0xF0,
				SectorsPerFAT16:   9,
				ExtBootSignature:  0x29,
				VolumeID:          0x0BADF00D,
				VolumeLabel:       "FLOPPY",
				FSType:            "FAT12",
				Signature:         0xAA55,
			},
		},
		{
			name: "empty input",
			args: args{
				data: nil,
			},
			wantErr: ErrTruncatedInput,
		},
		{
			name: "one byte short",
			args: args{
				data: fattest.FAT32().Bytes()[:511],
			},
			wantErr: ErrTruncatedInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.args.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecode_legacyIgnoresFAT32Offsets(t *testing.T) {
	data := fattest.FAT12().Bytes()
	// Garbage where the FAT32 root cluster and fs type would be.
	copy(data[44:48], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	copy(data[82:90], []byte("FAT32   "))

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.RootCluster != 0 || got.SectorsPerFAT32 != 0 || got.FSInfoSector != 0 || got.BackupBootSector != 0 {
		t.Errorf("Decode() populated FAT32 fields for a legacy layout: %+v", got)
	}
	if got.FSType != "FAT12" {
		t.Errorf("Decode() FSType = %q, want %q", got.FSType, "FAT12")
	}
}

func TestDecode_ignoresTrailingData(t *testing.T) {
	data := append(fattest.FAT32().Bytes(), bytes.Repeat([]byte{0xFF}, 512)...)
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want, _ := Decode(data[:SectorSize])
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %+v, want %+v", got, want)
	}
}

func TestDecode_deterministic(t *testing.T) {
	for _, data := range [][]byte{fattest.FAT32().Bytes(), fattest.FAT12().Bytes(), make([]byte, SectorSize)} {
		first, err1 := Decode(data)
		second, err2 := Decode(data)
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("Decode() errors differ: %v, %v", err1, err2)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Decode() not deterministic: %+v != %+v", first, second)
		}
	}
}

func Test_decodeASCII(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "padded",
			data: []byte("FAT32   "),
			want: "FAT32",
		},
		{
			name: "surrounding whitespace",
			data: []byte("  NO NAME  "),
			want: "NO NAME",
		},
		{
			name: "invalid bytes are replaced",
			data: []byte{'F', 0xFF, 'T', ' '},
			want: "F\uFFFDT",
		},
		{
			name: "DEL is ASCII",
			data: []byte{'F', 0x7F, 'T'},
			want: "F\x7fT",
		},
		{
			name: "all spaces",
			data: []byte("        "),
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeASCII(tt.data); got != tt.want {
				t.Errorf("decodeASCII() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadBootSector(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name: "complete sector",
			data: fattest.FAT32().Bytes(),
		},
		{
			name: "complete sector with more data",
			data: append(fattest.FAT12().Bytes(), make([]byte, 1024)...),
		},
		{
			name:    "short file",
			data:    []byte("This is no FAT file"),
			wantErr: ErrTruncatedInput,
		},
		{
			name:    "empty file",
			data:    []byte{},
			wantErr: ErrTruncatedInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadBootSector(iotest.OneByteReader(bytes.NewReader(tt.data)))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadBootSector() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if (got != nil) != (tt.wantErr == nil) {
				t.Errorf("ReadBootSector() = %v, wantErr %v", got, tt.wantErr)
			}
		})
	}
}

func TestReadSector_readError(t *testing.T) {
	readErr := errors.New("a super error")
	_, err := ReadSector(iotest.ErrReader(readErr))
	if !errors.Is(err, readErr) {
		t.Errorf("ReadSector() error = %v, want %v", err, readErr)
	}
	if errors.Is(err, ErrTruncatedInput) {
		t.Errorf("ReadSector() error = %v must not be ErrTruncatedInput", err)
	}
}

func TestReadBootSector_diskfsImage(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk.img")
	if err := fattest.CreateFAT32Image(imagePath, 40, "FATCHECK", fattest.KernelEntries()); err != nil {
		t.Fatalf("CreateFAT32Image() error = %v", err)
	}

	file, err := os.Open(imagePath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	b, err := ReadBootSector(file)
	if err != nil {
		t.Fatalf("ReadBootSector() error = %v", err)
	}
	if b.Layout != LayoutFAT32 {
		t.Errorf("ReadBootSector() Layout = %v, want %v", b.Layout, LayoutFAT32)
	}
	if err := Validate(b, FAT32); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if !b.HasBootSignature() {
		t.Errorf("HasBootSignature() = false, signature 0x%04X", b.Signature)
	}
}
