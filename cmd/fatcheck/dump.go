package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/aligator/fatcheck"
	"github.com/aligator/fatcheck/report"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dumpKind = ""

var dumpCmd = &cobra.Command{
	Use:   "dump IMAGE",
	Short: "Print the boot sector of an image",
	Long: `Prints a hex dump of the boot sector, the decoded fields and whether the
boot sector looks valid. The exit status is 1 if it does not.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := fatcheck.ParseKind(dumpKind)
		if dumpKind != "" && kind == fatcheck.Unknown {
			return fmt.Errorf("unknown kind %q, must be one of FAT12|FAT16|FAT32", dumpKind)
		}

		valid, err := dumpBootSector(cmd.OutOrStdout(), afero.NewOsFs(), args[0], kind, viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		if !valid {
			exitCode = 1
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVar(&dumpKind, "kind", dumpKind, "Validate as FAT12|FAT16|FAT32 (default: detect from the layout)")
}

// dumpBootSector prints sector 0 of the image at path and returns whether it is valid.
func dumpBootSector(w io.Writer, fs afero.Fs, path string, kind fatcheck.Kind, verbose bool) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return false, err
	}

	file, err := fs.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	sector, err := fatcheck.ReadSector(file)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(w, "Reading boot sector from: %s\n", path)
	fmt.Fprintf(w, "File size: %s (%d bytes)\n", humanize.IBytes(uint64(info.Size())), info.Size())

	printer := report.NewPrinter(w, verbose)

	printer.Title("Boot Sector Hex Dump (First 128 bytes)")
	hexDump(w, sector[:128], 0)
	printer.Title("Boot Sector Hex Dump (Last 32 bytes)")
	hexDump(w, sector[fatcheck.SectorSize-32:], fatcheck.SectorSize-32)

	b, err := fatcheck.Decode(sector)
	if err != nil {
		return false, err
	}

	printer.Title("Boot Sector Parsed (" + b.Layout.String() + ")")
	fieldTable(w, b)

	if kind == fatcheck.Unknown {
		kind = detectKind(b)
	}

	printer.Title("Validation")
	rep := report.New(printer)
	verdict(rep, b, kind)

	if rep.Summary().Success() {
		fmt.Fprintln(w, "\nBoot sector appears valid")
		return true, nil
	}
	fmt.Fprintln(w, "\nBoot sector has errors")
	return false, nil
}

// detectKind guesses the kind from the layout and the fs type string.
func detectKind(b *fatcheck.BootSector) fatcheck.Kind {
	if b.Layout == fatcheck.LayoutFAT32 {
		return fatcheck.FAT32
	}
	if strings.Contains(b.FSType, "FAT16") {
		return fatcheck.FAT16
	}
	return fatcheck.FAT12
}

func verdict(rep *report.Report, b *fatcheck.BootSector, kind fatcheck.Kind) {
	if fatcheck.ValidSectorSize(b.BytesPerSector) {
		rep.Passf("Valid bytes per sector: %d", b.BytesPerSector)
	} else {
		rep.Failf("Invalid bytes per sector: %d", b.BytesPerSector)
	}

	if fatcheck.ValidClusterSize(b.SectorsPerCluster) {
		rep.Passf("Valid sectors per cluster: %d", b.SectorsPerCluster)
	} else {
		rep.Failf("Invalid sectors per cluster: %d (must be power of 2)", b.SectorsPerCluster)
	}

	if b.Layout == fatcheck.LayoutFAT32 {
		if b.RootCluster >= 2 {
			rep.Passf("Valid root cluster: %d", b.RootCluster)
		} else {
			rep.Failf("Invalid root cluster: %d (must be >= 2)", b.RootCluster)
		}
	}

	if b.HasBootSignature() {
		rep.Passf("Valid boot signature: 0x%04X", b.Signature)
	} else {
		rep.Failf("Invalid boot signature: 0x%04X (should be 0x%04X)", b.Signature, fatcheck.BootSignature)
	}

	switch {
	case strings.Contains(b.FSType, "FAT32"):
		rep.Passf("FAT32 filesystem detected")
	case strings.Contains(b.FSType, "FAT"):
		rep.Warnf("FAT12/16 filesystem: '%s'", b.FSType)
	default:
		rep.Failf("Unknown filesystem type: '%s'", b.FSType)
	}

	if err := fatcheck.Validate(b, kind); err != nil {
		rep.Failf("Not a valid %s boot sector: %v", kind, err)
	} else {
		rep.Passf("Valid %s boot sector", kind)
	}

	for _, warning := range b.Warnings() {
		rep.Warnf("%s", warning)
	}
}

func fieldTable(w io.Writer, b *fatcheck.BootSector) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"FIELD", "VALUE"})

	t.AppendRows([]table.Row{
		{"OEM name", fmt.Sprintf("'%s'", b.OEMName)},
		{"Bytes per sector", b.BytesPerSector},
		{"Sectors per cluster", b.SectorsPerCluster},
		{"Reserved sectors", b.ReservedSectors},
		{"Number of FATs", b.NumFATs},
		{"Root entries", b.RootEntries},
		{"Total sectors (16)", b.TotalSectors16},
		{"Media type", fmt.Sprintf("0x%02X", b.MediaDescriptor)},
		{"FAT size (16)", b.SectorsPerFAT16},
		{"Sectors per track", b.SectorsPerTrack},
		{"Number of heads", b.NumHeads},
		{"Hidden sectors", b.HiddenSectors},
		{"Total sectors (32)", b.TotalSectors32},
	})

	if b.Layout == fatcheck.LayoutFAT32 {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"FAT size (32)", fmt.Sprintf("%d sectors", b.SectorsPerFAT32)},
			{"Flags", fmt.Sprintf("0x%04X", b.ExtFlags)},
			{"Version", b.FSVersion},
			{"Root cluster", b.RootCluster},
			{"FSInfo sector", b.FSInfoSector},
			{"Backup boot sector", b.BackupBootSector},
		})
	}

	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Drive number", fmt.Sprintf("0x%02X", b.DriveNumber)},
		{"Boot signature", fmt.Sprintf("0x%02X", b.ExtBootSignature)},
		{"Volume ID", fmt.Sprintf("0x%08X", b.VolumeID)},
		{"Volume label", fmt.Sprintf("'%s'", b.VolumeLabel)},
		{"FS type", fmt.Sprintf("'%s'", b.FSType)},
		{"Sector signature", fmt.Sprintf("0x%04X", b.Signature)},
	})

	t.SetStyle(table.StyleLight)
	t.Render()
}

// hexDump writes 16 bytes per line, prefixed with their offset and followed by
// the printable characters.
func hexDump(w io.Writer, data []byte, offset int) {
	for i := 0; i < len(data); i += 16 {
		var hexPart, asciiPart strings.Builder
		for j := 0; j < 16; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&hexPart, "%02X ", data[i+j])
				c := data[i+j]
				if c < 32 || c >= 127 {
					c = '.'
				}
				asciiPart.WriteByte(c)
			} else {
				hexPart.WriteString("   ")
				asciiPart.WriteByte(' ')
			}
			if j == 7 {
				hexPart.WriteByte(' ')
			}
		}
		fmt.Fprintf(w, "%08X  %s |%s|\n", offset+i, hexPart.String(), asciiPart.String())
	}
}
