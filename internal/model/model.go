// Package model contains the symbol database models.
package model

import (
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrIDNotResolved means an insert-or-fetch returned no row id.
	ErrIDNotResolved = errors.New("failed to resolve row id")
)

// Build is one OS build of one architecture.
type Build struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Version string `gorm:"not null" json:"version"`
	Build   string `gorm:"not null;uniqueIndex:idx_builds_build_arch,priority:1" json:"build"`
	Arch    string `gorm:"not null;uniqueIndex:idx_builds_build_arch,priority:2" json:"arch"`
}

// File is a scanned image inside a build.
type File struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	BuildID uint   `gorm:"not null;uniqueIndex:idx_files_build_name,priority:1" json:"build_id"`
	Build   *Build `gorm:"foreignKey:BuildID;constraint:OnDelete:CASCADE" json:"build,omitempty"`
	Name    string `gorm:"not null;uniqueIndex:idx_files_build_name,priority:2" json:"name"`
	Path    string `gorm:"not null" json:"path"`
}

// Symbol is an exported code symbol; Address is relative to __TEXT.
type Symbol struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	FileID  uint   `gorm:"not null;uniqueIndex:idx_symbols_file_address,priority:1" json:"file_id"`
	File    *File  `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE" json:"file,omitempty"`
	Address int64  `gorm:"not null;uniqueIndex:idx_symbols_file_address,priority:2" json:"address"`
	Name    string `gorm:"not null" json:"name"`
}

// SymbolQuery locates one symbol by build, architecture, image name and address.
type SymbolQuery struct {
	Build   string
	Arch    string
	File    string
	Address int64
}

type Counts struct {
	Builds  int64 `json:"builds"`
	Files   int64 `json:"files"`
	Symbols int64 `json:"symbols"`
}
