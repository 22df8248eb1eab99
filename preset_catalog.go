package configurator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PresetModel is the table row behind a named preset.
type PresetModel struct {
	Name      string `gorm:"primaryKey"`
	Data      []byte // Preset encoded as JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrPresetNotFound is returned by Get and Delete for unknown names.
var ErrPresetNotFound = errors.New("preset not found")

// PresetCatalog persists named presets in a SQLite file.
type PresetCatalog struct {
	db     *gorm.DB
	logger Logger
}

// OpenPresetCatalog opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway catalog.
func OpenPresetCatalog(path string, log Logger) (*PresetCatalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, "Failed to create preset directory for %s", path)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open preset database %s", path)
	}
	if err := db.AutoMigrate(&PresetModel{}); err != nil {
		return nil, errors.Wrapf(err, "Failed to migrate preset database %s", path)
	}

	log = orNop(log)
	log.Infof("Preset catalog opened: %s", path)
	return &PresetCatalog{db: db, logger: log}, nil
}

// Save creates or replaces the preset under p.Name.
func (c *PresetCatalog) Save(p Preset) error {
	if p.Name == "" {
		return errors.New("preset needs a name")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "Failed to encode preset %q", p.Name)
	}

	var existing PresetModel
	model := PresetModel{Name: p.Name, Data: data}
	if err := c.db.First(&existing, "name = ?", p.Name).Error; err == nil {
		model.CreatedAt = existing.CreatedAt
	}
	if err := c.db.Save(&model).Error; err != nil {
		return errors.Wrapf(err, "Failed to save preset %q", p.Name)
	}
	c.logger.Debugf("Preset saved: %s", p.Name)
	return nil
}

func (c *PresetCatalog) Get(name string) (Preset, error) {
	var model PresetModel
	err := c.db.First(&model, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Preset{}, errors.Wrapf(ErrPresetNotFound, "%q", name)
	}
	if err != nil {
		return Preset{}, errors.Wrapf(err, "Failed to load preset %q", name)
	}

	var p Preset
	if err := json.Unmarshal(model.Data, &p); err != nil {
		return Preset{}, errors.Wrapf(err, "Failed to decode preset %q", name)
	}
	p.Name = model.Name
	return p, nil
}

// List returns the presets ordered by name.
func (c *PresetCatalog) List() ([]Preset, error) {
	var models []PresetModel
	if err := c.db.Order("name").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "Failed to list presets")
	}

	out := make([]Preset, 0, len(models))
	for _, m := range models {
		var p Preset
		if err := json.Unmarshal(m.Data, &p); err != nil {
			c.logger.Warnf("Skipping unreadable preset %q: %v", m.Name, err)
			continue
		}
		p.Name = m.Name
		out = append(out, p)
	}
	return out, nil
}

func (c *PresetCatalog) Delete(name string) error {
	res := c.db.Delete(&PresetModel{}, "name = ?", name)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "Failed to delete preset %q", name)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrPresetNotFound, "%q", name)
	}
	return nil
}

func (c *PresetCatalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return errors.Wrap(err, "Failed to get preset database handle")
	}
	return sqlDB.Close()
}
