package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tokei/sim"
)

// A Scenario scripts a run: the events to schedule and how to pace them.
type Scenario struct {
	Policy    string         `yaml:"policy"`
	HardLimit string         `yaml:"hard_limit"`
	Events    []EventSpec    `yaml:"events"`
	Periodic  []PeriodicSpec `yaml:"periodic"`
}

// An EventSpec schedules a single labeled event. A nil context leaves the
// event untagged.
type EventSpec struct {
	At      string  `yaml:"at"`
	Context *uint32 `yaml:"context"`
	Label   string  `yaml:"label"`
}

// A PeriodicSpec schedules a train of events at a fixed interval.
type PeriodicSpec struct {
	Start    string `yaml:"start"`
	Interval string `yaml:"interval"`
	Count    int    `yaml:"count"`
	Label    string `yaml:"label"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	scenario := &Scenario{}

	err = yaml.Unmarshal(data, scenario)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	err = scenario.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return scenario, nil
}

func (s *Scenario) validate() error {
	for i, e := range s.Events {
		_, err := parseVTime(e.At)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}

	for i, p := range s.Periodic {
		_, err := parseVTime(p.Start)
		if err != nil {
			return fmt.Errorf("periodic %d: %w", i, err)
		}

		_, err = parseVTime(p.Interval)
		if err != nil {
			return fmt.Errorf("periodic %d: %w", i, err)
		}

		if p.Count <= 0 {
			return fmt.Errorf("periodic %d: count must be positive", i)
		}
	}

	if s.Policy != "" {
		_, err := parsePolicy(s.Policy)
		if err != nil {
			return err
		}
	}

	if s.HardLimit != "" {
		_, err := parseVTime(s.HardLimit)
		if err != nil {
			return err
		}
	}

	return nil
}

// parseVTime reads a duration such as "10ms" into a virtual time span.
func parseVTime(s string) (sim.VTime, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}

	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}

	return sim.FromDuration(d), nil
}

func parsePolicy(s string) (sim.SyncPolicy, error) {
	switch strings.ToLower(s) {
	case "besteffort", "best-effort":
		return sim.SyncBestEffort, nil
	case "hardlimit", "hard-limit":
		return sim.SyncHardLimit, nil
	}

	return 0, fmt.Errorf("unknown policy %q", s)
}
