// File model contains the structs which match the direct on-disk structures of a FAT boot sector.

package fatcheck

// rawBootSector is the complete first sector of a FAT volume.
// Bytes 0-35 are shared by all FAT variants, everything after that depends on the layout.
type rawBootSector struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
	BootCode            [420]byte
	Signature           uint16
}

// legacySpecificData is the FAT12 / FAT16 view of rawBootSector.FATSpecificData.
type legacySpecificData struct {
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
	Unused           [28]byte
}

// fat32SpecificData is the FAT32 view of rawBootSector.FATSpecificData.
type fat32SpecificData struct {
	FatSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}
