package seed

import (
	_ "embed"
	"errors"
	"fmt"

	"toolhub/internal/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed presets.yaml
var presetsYAML []byte

// PresetItem is a permanent catalog entry defined in presets.yaml.
type PresetItem struct {
	Name        string `yaml:"name"`
	Identifier  string `yaml:"identifier"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
}

// PresetCollection is a permanent collection defined in presets.yaml.
type PresetCollection struct {
	Title           string   `yaml:"title"`
	Slug            string   `yaml:"slug"`
	Description     string   `yaml:"description"`
	Visibility      string   `yaml:"visibility"`
	ItemIdentifiers []string `yaml:"item_identifiers"`
}

// Presets is the parsed shape of presets.yaml.
type Presets struct {
	Items       []PresetItem       `yaml:"items"`
	Collections []PresetCollection `yaml:"collections"`
}

// LoadPresets parses the embedded preset definitions.
func LoadPresets() (*Presets, error) {
	var presets Presets
	if err := yaml.Unmarshal(presetsYAML, &presets); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return &presets, nil
}

// ApplyPresets upserts the built-in catalog items and collections. Identifiers
// and slugs are the conflict keys, so re-running is safe.
func ApplyPresets(db *gorm.DB) error {
	presets, err := LoadPresets()
	if err != nil {
		return err
	}

	for _, preset := range presets.Items {
		err := db.Transaction(func(tx *gorm.DB) error {
			item := models.Item{
				UUID:        uuid.NewString(),
				Name:        preset.Name,
				Identifier:  preset.Identifier,
				Description: preset.Description,
				Status:      models.ItemStatusAvailable,
				Location:    models.ItemLocation(preset.Location),
			}
			return tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "identifier"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description", "location", "updated_at"}),
			}).Create(&item).Error
		})
		if err != nil {
			return fmt.Errorf("seed built-in item %s: %w", preset.Identifier, err)
		}
	}

	for _, preset := range presets.Collections {
		err := db.Transaction(func(tx *gorm.DB) error {
			collection := models.Collection{
				UUID:        uuid.NewString(),
				Slug:        preset.Slug,
				Title:       preset.Title,
				Description: preset.Description,
				Visibility:  models.Visibility(preset.Visibility),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "description", "visibility", "updated_at"}),
			}).Create(&collection).Error; err != nil {
				return err
			}

			if collection.ID == 0 {
				if err := tx.Where("slug = ?", preset.Slug).First(&collection).Error; err != nil {
					return err
				}
			}

			if len(preset.ItemIdentifiers) == 0 {
				return nil
			}

			var items []models.Item
			if err := tx.Where("identifier IN ?", preset.ItemIdentifiers).Find(&items).Error; err != nil {
				return err
			}
			if len(items) != len(preset.ItemIdentifiers) {
				return errors.New("preset references unknown item identifiers")
			}

			return tx.Model(&collection).Association("Items").Replace(items)
		})
		if err != nil {
			return fmt.Errorf("seed built-in collection %s: %w", preset.Slug, err)
		}
	}

	return nil
}
