// Package fatcheck reads and validates FAT12/16/32 boot sectors.
//
// The commands in cmd/ use it to check the disk images of a kernel build:
// cmd/fatcheck runs the checks, cmd/generate creates FAT32 images to run them against.
package fatcheck

//go:generate go run ./cmd/generate -o testdata
