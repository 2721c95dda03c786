package config

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/tesla-ce/trust-backend/internal/logger"
	"github.com/tesla-ce/trust-backend/internal/repos"
	"github.com/tesla-ce/trust-backend/internal/types"
)

// Seed describes the initial instrument and provider catalogue. Loaded once
// at startup; existing rows (matched by acronym) are left untouched.
type Seed struct {
	Instruments []SeedInstrument `yaml:"instruments"`
}

type SeedInstrument struct {
	Name              string         `yaml:"name"`
	Acronym           string         `yaml:"acronym"`
	Enabled           bool           `yaml:"enabled"`
	RequiresEnrolment bool           `yaml:"requires_enrolment"`
	Identity          bool           `yaml:"identity"`
	Originality       bool           `yaml:"originality"`
	Authorship        bool           `yaml:"authorship"`
	Integrity         bool           `yaml:"integrity"`
	Providers         []SeedProvider `yaml:"providers"`
}

type SeedProvider struct {
	Name             string  `yaml:"name"`
	Acronym          string  `yaml:"acronym"`
	Queue            string  `yaml:"queue"`
	Enabled          bool    `yaml:"enabled"`
	AllowValidation  bool    `yaml:"allow_validation"`
	ValidationActive bool    `yaml:"validation_active"`
	InvertedPolarity bool    `yaml:"inverted_polarity"`
	WarningBelow     float64 `yaml:"warning_below"`
	AlertBelow       float64 `yaml:"alert_below"`
	// Secret is hashed before it reaches the database.
	Secret string `yaml:"secret"`
}

func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed creates missing instruments and providers from the seed
// catalogue. Idempotent across restarts.
func ApplySeed(
	ctx context.Context,
	log *logger.Logger,
	instruments repos.InstrumentRepo,
	providers repos.ProviderRepo,
	seed *Seed,
) error {
	seedLog := log.With("component", "seed")
	for _, si := range seed.Instruments {
		if si.Acronym == "" {
			return fmt.Errorf("seed instrument %q has no acronym", si.Name)
		}
		instrument, err := instruments.GetByAcronym(ctx, nil, si.Acronym)
		if err != nil {
			return err
		}
		if instrument == nil {
			created, err := instruments.Create(ctx, nil, []*types.Instrument{{
				ID:                uuid.New(),
				Name:              si.Name,
				Acronym:           si.Acronym,
				Enabled:           si.Enabled,
				RequiresEnrolment: si.RequiresEnrolment,
				Identity:          si.Identity,
				Originality:       si.Originality,
				Authorship:        si.Authorship,
				Integrity:         si.Integrity,
			}})
			if err != nil {
				return err
			}
			instrument = created[0]
			seedLog.Info("Seeded instrument", "acronym", si.Acronym)
		}
		for _, sp := range si.Providers {
			if sp.Acronym == "" || sp.Queue == "" {
				return fmt.Errorf("seed provider %q needs acronym and queue", sp.Name)
			}
			existing, err := providers.GetByAcronym(ctx, nil, sp.Acronym)
			if err != nil {
				return err
			}
			if existing != nil {
				continue
			}
			secretHash := ""
			if sp.Secret != "" {
				hash, err := bcrypt.GenerateFromPassword([]byte(sp.Secret), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				secretHash = string(hash)
			}
			if _, err := providers.Create(ctx, nil, []*types.Provider{{
				ID:               uuid.New(),
				InstrumentID:     instrument.ID,
				Name:             sp.Name,
				Acronym:          sp.Acronym,
				Queue:            sp.Queue,
				Enabled:          sp.Enabled,
				AllowValidation:  sp.AllowValidation,
				ValidationActive: sp.ValidationActive,
				InvertedPolarity: sp.InvertedPolarity,
				WarningBelow:     sp.WarningBelow,
				AlertBelow:       sp.AlertBelow,
				SecretHash:       secretHash,
			}}); err != nil {
				return err
			}
			seedLog.Info("Seeded provider", "acronym", sp.Acronym, "queue", sp.Queue)
		}
	}
	return nil
}
