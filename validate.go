package fatcheck

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Kind is the filesystem a caller expects to find on an image.
// The boot sector itself only reports a free text FSType.
type Kind uint8

const (
	Unknown Kind = iota
	FAT12
	FAT16
	FAT32
)

func (k Kind) String() string {
	switch k {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	default:
		return "Unknown"
	}
}

// ParseKind is the reverse of Kind.String. It is case insensitive and returns Unknown
// for everything it does not know.
func ParseKind(s string) Kind {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FAT12":
		return FAT12
	case "FAT16":
		return FAT16
	case "FAT32":
		return FAT32
	default:
		return Unknown
	}
}

// ErrUnknownKind is returned by Validate if no predicate exists for the expected kind.
var ErrUnknownKind = errors.New("no validity rules for filesystem kind")

// FieldError describes a single field which violates the rules of the expected filesystem.
type FieldError struct {
	Field string
	Value interface{}
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %v (want %s)", e.Field, e.Value, e.Want)
}

// ValidSectorSize reports whether n is one of the sector sizes FAT allows: 512, 1024, 2048 or 4096.
func ValidSectorSize(n uint16) bool {
	switch n {
	case 512, 1024, 2048, 4096:
		return true
	}
	return false
}

// ValidClusterSize reports whether n sectors per cluster is a power of two greater than 0.
// For an uint8 this is exactly the set 1, 2, 4 ... 128.
func ValidClusterSize(n uint8) bool {
	return n > 0 && n&(n-1) == 0
}

// ValidFATCount reports whether a volume with n FATs is acceptable (1 or 2).
func ValidFATCount(n uint8) bool {
	return n == 1 || n == 2
}

// IsValid reports whether b satisfies all structural rules of kind.
func IsValid(b *BootSector, kind Kind) bool {
	return Validate(b, kind) == nil
}

// IsValidFAT32 reports whether b is a valid FAT32 boot sector.
func (b *BootSector) IsValidFAT32() bool {
	return IsValid(b, FAT32)
}

// IsValidFAT12 reports whether b is a valid FAT12 boot sector.
func (b *BootSector) IsValidFAT12() bool {
	return IsValid(b, FAT12)
}

// Validate checks b against the rules of kind and returns all violations at once.
// Each violation is a *FieldError; use multierr.Errors to get them one by one.
//
// FAT32 requires a valid geometry, no fixed root directory (RootEntries, TotalSectors16
// and SectorsPerFAT16 all 0), RootCluster >= 2 and FSType "FAT32".
//
// FAT12 and FAT16 require a valid geometry, RootEntries > 0 and an FSType containing "FAT".
// All conditions have to hold together. The type check accepting "FAT12" or "FAT" is
// grouped as its own term; it is never enough on its own to make a sector valid.
func Validate(b *BootSector, kind Kind) error {
	switch kind {
	case FAT32:
		return validateFAT32(b)
	case FAT12, FAT16:
		return validateLegacy(b, kind)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

func validateGeometry(b *BootSector) error {
	var err error
	if !ValidSectorSize(b.BytesPerSector) {
		err = multierr.Append(err, &FieldError{Field: "bytes per sector", Value: b.BytesPerSector, Want: "512, 1024, 2048 or 4096"})
	}
	if !ValidClusterSize(b.SectorsPerCluster) {
		err = multierr.Append(err, &FieldError{Field: "sectors per cluster", Value: b.SectorsPerCluster, Want: "a power of 2 up to 128"})
	}
	if !ValidFATCount(b.NumFATs) {
		err = multierr.Append(err, &FieldError{Field: "number of FATs", Value: b.NumFATs, Want: "1 or 2"})
	}
	return err
}

func validateFAT32(b *BootSector) error {
	err := validateGeometry(b)
	if b.RootEntries != 0 {
		err = multierr.Append(err, &FieldError{Field: "root entries", Value: b.RootEntries, Want: "0"})
	}
	if b.TotalSectors16 != 0 {
		err = multierr.Append(err, &FieldError{Field: "total sectors (16)", Value: b.TotalSectors16, Want: "0"})
	}
	if b.SectorsPerFAT16 != 0 {
		err = multierr.Append(err, &FieldError{Field: "sectors per FAT (16)", Value: b.SectorsPerFAT16, Want: "0"})
	}
	if b.RootCluster < 2 {
		err = multierr.Append(err, &FieldError{Field: "root cluster", Value: b.RootCluster, Want: ">= 2"})
	}
	if strings.TrimSpace(b.FSType) != "FAT32" {
		err = multierr.Append(err, &FieldError{Field: "fs type", Value: fmt.Sprintf("%q", b.FSType), Want: `"FAT32"`})
	}
	return err
}

func validateLegacy(b *BootSector, kind Kind) error {
	err := validateGeometry(b)
	if b.RootEntries == 0 {
		err = multierr.Append(err, &FieldError{Field: "root entries", Value: b.RootEntries, Want: "> 0"})
	}

	fsType := strings.TrimSpace(b.FSType)
	if !(strings.Contains(fsType, kind.String()) || strings.Contains(fsType, "FAT")) {
		err = multierr.Append(err, &FieldError{Field: "fs type", Value: fmt.Sprintf("%q", b.FSType), Want: fmt.Sprintf("%q or %q", kind.String(), "FAT")})
	}
	return err
}

// Warnings returns non blocking remarks about b. They never affect validity.
func (b *BootSector) Warnings() []string {
	var warnings []string
	if b.BytesPerSector != 512 {
		warnings = append(warnings, fmt.Sprintf("Non-standard sector size: %d", b.BytesPerSector))
	}
	if b.NumFATs != 2 {
		warnings = append(warnings, fmt.Sprintf("Unusual FAT count: %d", b.NumFATs))
	}
	return warnings
}

// HasBootSignature reports whether the decoded sector ends with 0xAA55.
func (b *BootSector) HasBootSignature() bool {
	return b.Signature == BootSignature
}

// CheckSignature reports whether data carries the boot signature at offset 510.
// It returns the value found there so callers can report it.
func CheckSignature(data []byte) (bool, uint16, error) {
	signature, err := ReadSignature(data)
	if err != nil {
		return false, 0, err
	}
	return signature == BootSignature, signature, nil
}
