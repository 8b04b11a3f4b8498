package balances

import (
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/potwatch/potwatch/internal/logger"
	"github.com/potwatch/potwatch/internal/models"
)

// Overrides renames and hides pots on the dashboard based on YAML configuration
type Overrides struct {
	overrides *models.DisplayOverrides
}

// NewOverrides creates a new Overrides instance
func NewOverrides() *Overrides {
	return &Overrides{
		overrides: &models.DisplayOverrides{},
	}
}

// Load loads display overrides from a YAML file
func (o *Overrides) Load(filePath string) error {
	if filePath == "" {
		logger.Info("No overrides file provided")
		return nil
	}

	logger.Info("Loading display overrides from file", zap.String("file", filePath))
	// Check if file exists first
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		logger.Error("Overrides file not found")
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	var overrides models.DisplayOverrides
	err = yaml.Unmarshal(data, &overrides)
	if err != nil {
		return err
	}

	o.overrides = &overrides
	return nil
}

// Hidden reports whether a pot should be dropped from the output
func (o *Overrides) Hidden(potID string) bool {
	if o.overrides == nil {
		return false
	}

	for _, pot := range o.overrides.Pots {
		if pot.ID == potID {
			return pot.Hidden
		}
	}
	return false
}

// DisplayName returns the override name for a pot, or the original name
// when no rename is configured
func (o *Overrides) DisplayName(potID, originalName string) string {
	if o.overrides == nil {
		return originalName
	}

	for _, pot := range o.overrides.Pots {
		if pot.ID == potID && pot.Name != "" {
			return pot.Name
		}
	}
	return originalName
}
