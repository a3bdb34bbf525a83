package db

import (
	"errors"
	"fmt"

	"github.com/blacktop/symdb/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	upsertBuild = `INSERT INTO builds (version, build, arch) VALUES (?, ?, ?)
ON CONFLICT (build, arch) DO UPDATE SET build = excluded.build
RETURNING id`
	upsertFile = `INSERT INTO files (build_id, name, path) VALUES (?, ?, ?)
ON CONFLICT (build_id, name) DO UPDATE SET name = excluded.name
RETURNING id`
)

func gormConfig(batchSize int) *gorm.Config {
	return &gorm.Config{
		CreateBatchSize:        batchSize,
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// store implements the Database operations shared by every gorm dialect.
type store struct {
	db        *gorm.DB
	batchSize int
}

func (s *store) migrate() error {
	return s.db.AutoMigrate(
		&model.Build{},
		&model.File{},
		&model.Symbol{},
	)
}

func (s *store) EnsureBuild(b *model.Build) (uint, error) {
	var id uint
	if err := s.db.Raw(upsertBuild, b.Version, b.Build, b.Arch).Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("failed to insert build %s (%s): %w", b.Build, b.Arch, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("build %s (%s): %w", b.Build, b.Arch, model.ErrIDNotResolved)
	}
	b.ID = id
	return id, nil
}

func (s *store) WriteFile(buildID uint, f *model.File, syms []model.Symbol) (uint, error) {
	var id uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(upsertFile, buildID, f.Name, f.Path).Scan(&id).Error; err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.Name, err)
		}
		if id == 0 {
			return fmt.Errorf("file %s: %w", f.Name, model.ErrIDNotResolved)
		}
		if len(syms) == 0 {
			return nil
		}
		for i := range syms {
			syms[i].ID = 0
			syms[i].FileID = id
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_id"}, {Name: "address"}},
			DoNothing: true,
		}).CreateInBatches(&syms, s.batchSize).Error; err != nil {
			return fmt.Errorf("failed to insert symbols of %s: %w", f.Name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	f.ID = id
	f.BuildID = buildID
	return id, nil
}

func (s *store) FindBuild(build, arch string) (*model.Build, error) {
	var b model.Build
	if err := s.db.Where("build = ? AND arch = ?", build, arch).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *store) Builds() ([]model.Build, error) {
	var builds []model.Build
	if err := s.db.Order("id").Find(&builds).Error; err != nil {
		return nil, err
	}
	return builds, nil
}

func (s *store) Files(buildID uint) ([]model.File, error) {
	var files []model.File
	if err := s.db.Where("build_id = ?", buildID).Order("id").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (s *store) Symbols(fileID uint) ([]model.Symbol, error) {
	var syms []model.Symbol
	if err := s.db.Where("file_id = ?", fileID).Order("address").Find(&syms).Error; err != nil {
		return nil, err
	}
	return syms, nil
}

func (s *store) LookupSymbol(q model.SymbolQuery) (*model.Symbol, error) {
	var sym model.Symbol
	if err := s.db.Joins("JOIN files ON files.id = symbols.file_id").
		Joins("JOIN builds ON builds.id = files.build_id").
		Where("builds.build = ? AND builds.arch = ? AND files.name = ? AND symbols.address = ?",
			q.Build, q.Arch, q.File, q.Address).
		First(&sym).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &sym, nil
}

func (s *store) Counts() (*model.Counts, error) {
	var c model.Counts
	if err := s.db.Model(&model.Build{}).Count(&c.Builds).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&model.File{}).Count(&c.Files).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&model.Symbol{}).Count(&c.Symbols).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *store) close() error {
	if s.db == nil {
		return nil
	}
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return db.Close()
}
