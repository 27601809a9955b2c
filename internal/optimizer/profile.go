package optimizer

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Profile describes the comfort envelope the optimizer steers towards.
type Profile struct {
	MinTemperature   float64 `yaml:"minTemperature"`
	MaxTemperature   float64 `yaml:"maxTemperature"`
	DayTemperature   float64 `yaml:"dayTemperature"`
	NightTemperature float64 `yaml:"nightTemperature"`
	DayStartHour     int     `yaml:"dayStartHour"`
	DayEndHour       int     `yaml:"dayEndHour"`
	Deadband         float64 `yaml:"deadband"`
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() Profile {
	return Profile{
		MinTemperature:   16,
		MaxTemperature:   23,
		DayTemperature:   21,
		NightTemperature: 18,
		DayStartHour:     7,
		DayEndHour:       22,
		Deadband:         0.5,
	}
}

// LoadProfile reads a Profile. Omitted fields keep their default value.
func LoadProfile(r io.Reader) (Profile, error) {
	profile := DefaultProfile()
	if err := yaml.NewDecoder(r).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}
	if err := profile.validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (p Profile) validate() error {
	if p.MinTemperature > p.MaxTemperature {
		return fmt.Errorf("invalid profile: minTemperature %.1f above maxTemperature %.1f", p.MinTemperature, p.MaxTemperature)
	}
	if p.DayStartHour < 0 || p.DayStartHour > 23 || p.DayEndHour < 0 || p.DayEndHour > 23 {
		return fmt.Errorf("invalid profile: day hours must be between 0 and 23")
	}
	return nil
}

// TargetFor returns the desired temperature for the given hour of day, clamped
// to the profile's envelope.
func (p Profile) TargetFor(hour int) float64 {
	target := p.NightTemperature
	if hour >= p.DayStartHour && hour < p.DayEndHour {
		target = p.DayTemperature
	}
	return p.clamp(target)
}

func (p Profile) clamp(temperature float64) float64 {
	if temperature < p.MinTemperature {
		return p.MinTemperature
	}
	if temperature > p.MaxTemperature {
		return p.MaxTemperature
	}
	return temperature
}
