// Package config provides configuration loading for flatten-sim.
// Settings come from defaults, an optional YAML file and FLATTEN_*
// environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/talgya/flatten-sim/internal/agents"
	"github.com/talgya/flatten-sim/internal/engine"
	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/health"
	"github.com/talgya/flatten-sim/internal/refdata"
	"github.com/talgya/flatten-sim/internal/schedule"
	"github.com/talgya/flatten-sim/internal/world"
)

// MaxWeeks bounds a single run.
const MaxWeeks = 52

// Config contains all flatten-sim settings.
type Config struct {
	// Region is the zip code looked up in the population table.
	Region string `json:"region" yaml:"region" env:"FLATTEN_REGION"`

	// Team labels stored runs for history filtering.
	Team string `json:"team" yaml:"team" env:"FLATTEN_TEAM"`

	Weeks int `json:"weeks" yaml:"weeks" env:"FLATTEN_WEEKS"`

	// Seed fixes the random source; 0 draws a fresh seed per run.
	Seed int64 `json:"seed" yaml:"seed" env:"FLATTEN_SEED"`

	InitialInfections int  `json:"initial_infections" yaml:"initial_infections" env:"FLATTEN_INITIAL_INFECTIONS"`
	Parallel          bool `json:"parallel" yaml:"parallel" env:"FLATTEN_PARALLEL"`

	Data     DataConfig     `json:"data" yaml:"data"`
	Hospital HospitalConfig `json:"hospital" yaml:"hospital"`
	Model    ModelConfig    `json:"model" yaml:"model"`
	Tracks   []TrackConfig  `json:"tracks" yaml:"tracks"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	API      APIConfig      `json:"api" yaml:"api"`
}

// DataConfig locates the reference tables.
type DataConfig struct {
	PopulationCSV string `json:"population_csv" yaml:"population_csv" env:"FLATTEN_POPULATION_CSV"`
	HospitalsCSV  string `json:"hospitals_csv" yaml:"hospitals_csv" env:"FLATTEN_HOSPITALS_CSV"`

	// Population, when its total is positive, replaces the CSV tables with
	// a single synthetic region.
	Population InlinePopulation `json:"population" yaml:"population"`
}

// InlinePopulation describes a region without reference tables.
type InlinePopulation struct {
	Total    int   `json:"total" yaml:"total"`
	Brackets []int `json:"brackets" yaml:"brackets"`
	Beds     int   `json:"beds" yaml:"beds"`
}

// HospitalConfig selects the bed lookup and the baseline occupancy.
type HospitalConfig struct {
	// Strategy is "county" (default), "region" or "ratio".
	Strategy        string  `json:"strategy" yaml:"strategy" env:"FLATTEN_CAPACITY_STRATEGY"`
	BedsPerThousand float64 `json:"beds_per_thousand" yaml:"beds_per_thousand" env:"FLATTEN_BEDS_PER_THOUSAND"`
	BedOccupancy    float64 `json:"bed_occupancy" yaml:"bed_occupancy" env:"FLATTEN_BED_OCCUPANCY"`
}

// ModelConfig holds the epidemiological tunables.
type ModelConfig struct {
	InfectiousWeights            health.Weights         `json:"infectious_weights" yaml:"infectious_weights"`
	Multipliers                  map[string]float64     `json:"multipliers" yaml:"multipliers"`
	GatheringDestinations        int                    `json:"gathering_destinations" yaml:"gathering_destinations"`
	SymptomaticOutingProbability float64                `json:"symptomatic_outing_probability" yaml:"symptomatic_outing_probability"`
	Clinical                     []agents.ClinicalRates `json:"clinical" yaml:"clinical"`
	Spawn                        agents.SpawnConfig     `json:"spawn" yaml:"spawn"`
	Graph                        world.GraphConfig      `json:"graph" yaml:"graph"`
	Field                        world.FieldConfig      `json:"field" yaml:"field"`
}

// TrackConfig declares one decision track.
type TrackConfig struct {
	Name string `json:"name" yaml:"name"`

	// Policy is "scripted", "maximal" or "minimal".
	Policy string `json:"policy" yaml:"policy"`

	// Decisions are per-week activity counts. Scripted tracks repeat the
	// last week; minimal tracks use only the first.
	Decisions []Decision `json:"decisions,omitempty" yaml:"decisions,omitempty"`

	// Minimal is the decision a minimal track falls back to after week one.
	Minimal Decision `json:"minimal,omitempty" yaml:"minimal,omitempty"`
}

// Decision maps activity names to days per week.
type Decision map[string]int

// Weekly converts the decision, rejecting unknown activities and counts
// outside [0, 7].
func (d Decision) Weekly() (schedule.Weekly, error) {
	var w schedule.Weekly
	var seen [schedule.NumActivities]bool
	for name, n := range d {
		a, err := schedule.ParseActivity(name)
		if err != nil {
			return w, err
		}
		if seen[a] {
			return w, fmt.Errorf("activity %s given more than once", a)
		}
		seen[a] = true
		w[a] = n
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// DecisionOf is the inverse of Decision.Weekly.
func DecisionOf(w schedule.Weekly) Decision {
	d := make(Decision, schedule.NumActivities)
	for a, n := range w {
		d[schedule.Activity(a).String()] = n
	}
	return d
}

// LoggingConfig configures operational logging and the day trace.
type LoggingConfig struct {
	// Level is "warn", "info" (default), "debug" or "trace". Trace also
	// writes days.jsonl into TraceDir.
	Level    string `json:"level" yaml:"level" env:"FLATTEN_LOG_LEVEL"`
	Format   string `json:"format" yaml:"format" env:"FLATTEN_LOG_FORMAT"`
	TraceDir string `json:"trace_dir" yaml:"trace_dir" env:"FLATTEN_TRACE_DIR"`
}

// StoreConfig locates the run database.
type StoreConfig struct {
	Path string `json:"path" yaml:"path" env:"FLATTEN_DB_PATH"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port int `json:"port" yaml:"port" env:"FLATTEN_API_PORT"`

	// AdminKey guards run submission. Empty disables POST /api/v1/runs.
	AdminKey string `json:"-" yaml:"admin_key,omitempty" env:"FLATTEN_ADMIN_KEY"`

	// RatePerMinute limits run submissions per client.
	RatePerMinute int `json:"rate_per_minute" yaml:"rate_per_minute" env:"FLATTEN_API_RATE"`
}

// RedactedAdminKey returns the key with most characters masked.
func (c APIConfig) RedactedAdminKey() string {
	if c.AdminKey == "" {
		return ""
	}
	if len(c.AdminKey) < 12 {
		return "(set)"
	}
	return c.AdminKey[:4] + "..." + c.AdminKey[len(c.AdminKey)-4:]
}

// String keeps the admin key out of logs.
func (c APIConfig) String() string {
	return fmt.Sprintf("APIConfig{Port:%d, AdminKey:%s, RatePerMinute:%d}", c.Port, c.RedactedAdminKey(), c.RatePerMinute)
}

// DefaultDecision is the player's opening week when none is configured.
var DefaultDecision = schedule.Weekly{
	schedule.Essentials: 2,
	schedule.Work:       5,
	schedule.Leisure:    2,
	schedule.Gathering:  1,
}

// Default returns a Config with the standard model and three tracks.
func Default() *Config {
	exposure := engine.DefaultExposureConfig()
	multipliers := make(map[string]float64, schedule.NumActivities)
	for a, m := range exposure.Multipliers {
		multipliers[schedule.Activity(a).String()] = m
	}
	clinical := agents.DefaultClinicalTable()

	return &Config{
		Weeks:             8,
		InitialInfections: 1,
		Data: DataConfig{
			PopulationCSV: "data/population.csv",
			HospitalsCSV:  "data/hospitals.csv",
		},
		Hospital: HospitalConfig{
			Strategy:     "county",
			BedOccupancy: engine.DefaultBedOccupancy,
		},
		Model: ModelConfig{
			InfectiousWeights:            health.DefaultWeights(),
			Multipliers:                  multipliers,
			GatheringDestinations:        exposure.GatheringDestinations,
			SymptomaticOutingProbability: exposure.SymptomaticOutingProbability,
			Clinical:                     clinical[:],
			Spawn:                        agents.DefaultSpawnConfig(),
			Graph:                        world.DefaultGraphConfig(),
			Field:                        world.DefaultFieldConfig(),
		},
		Tracks: []TrackConfig{
			{Name: "actual", Policy: "scripted", Decisions: []Decision{DecisionOf(DefaultDecision)}},
			{Name: "worst", Policy: "maximal"},
			{Name: "best", Policy: "minimal", Decisions: []Decision{DecisionOf(DefaultDecision)}, Minimal: DecisionOf(schedule.DefaultMinimal)},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: "data/flatten.db",
		},
		API: APIConfig{
			Port:          8080,
			RatePerMinute: 6,
		},
	}
}

// Load reads path when it is non-empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.API.AdminKey = expandEnvVars(cfg.API.AdminKey)
	return cfg, nil
}

// applyEnvOverrides sets every field whose FLATTEN_* variable is present.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// Validate checks that the configuration can start a run.
func (c *Config) Validate() error {
	if c.Data.Population.Total <= 0 && strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if c.Weeks < 1 || c.Weeks > MaxWeeks {
		return fmt.Errorf("weeks must be between 1 and %d, got %d", MaxWeeks, c.Weeks)
	}
	if c.Data.Population.Total > 0 && len(c.Data.Population.Brackets) != agents.NumBrackets {
		return fmt.Errorf("inline population needs %d brackets, got %d", agents.NumBrackets, len(c.Data.Population.Brackets))
	}
	if _, err := c.CapacityLookup(); err != nil {
		return err
	}

	validLevels := map[string]bool{"": true, "warn": true, "info": true, "debug": true, "trace": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: warn, info, debug, trace)", c.Logging.Level)
	}
	validFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	if _, err := c.ClinicalTable(); err != nil {
		return err
	}
	if err := c.Model.Spawn.Validate(); err != nil {
		return err
	}
	if err := c.Model.Graph.Validate(); err != nil {
		return err
	}
	if err := c.Model.Field.Validate(); err != nil {
		return err
	}

	opts, err := c.Options()
	if err != nil {
		return err
	}
	return opts.Validate()
}

// ClinicalTable converts the configured rates, one entry per age bracket.
func (c *Config) ClinicalTable() (agents.ClinicalTable, error) {
	var t agents.ClinicalTable
	if len(c.Model.Clinical) != agents.NumBrackets {
		return t, fmt.Errorf("clinical table needs %d brackets, got %d", agents.NumBrackets, len(c.Model.Clinical))
	}
	copy(t[:], c.Model.Clinical)
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("clinical table: %w", err)
	}
	return t, nil
}

// CapacityLookup returns the configured bed lookup. An inline population
// always counts its own beds.
func (c *Config) CapacityLookup() (refdata.CapacityLookup, error) {
	if c.Data.Population.Total > 0 {
		return refdata.ByRegion{}, nil
	}
	return refdata.ParseCapacityLookup(c.Hospital.Strategy, c.Hospital.BedsPerThousand)
}

// Policies builds one policy per configured track.
func (c *Config) Policies() ([]schedule.Policy, error) {
	policies := make([]schedule.Policy, 0, len(c.Tracks))
	for i, tc := range c.Tracks {
		p, err := tc.build()
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i+1, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func (tc TrackConfig) build() (schedule.Policy, error) {
	if tc.Name == "" {
		return nil, errors.New("track name is required")
	}
	weeks := make([]schedule.Weekly, 0, len(tc.Decisions))
	for i, d := range tc.Decisions {
		w, err := d.Weekly()
		if err != nil {
			return nil, fmt.Errorf("%s week %d: %w", tc.Name, i+1, err)
		}
		weeks = append(weeks, w)
	}

	switch strings.ToLower(tc.Policy) {
	case "", "scripted":
		return schedule.NewScripted(tc.Name, weeks)
	case "maximal":
		return schedule.NewMaximal(tc.Name), nil
	case "minimal":
		if len(weeks) == 0 {
			return nil, fmt.Errorf("minimal track %q needs a first-week decision", tc.Name)
		}
		minimal := schedule.DefaultMinimal
		if len(tc.Minimal) > 0 {
			var err error
			if minimal, err = tc.Minimal.Weekly(); err != nil {
				return nil, fmt.Errorf("%s minimal: %w", tc.Name, err)
			}
		}
		return schedule.NewMinimal(tc.Name, weeks[0], minimal)
	default:
		return nil, fmt.Errorf("unknown policy %q for track %q (valid: scripted, maximal, minimal)", tc.Policy, tc.Name)
	}
}

// PlayerTrack names the first scripted track, the one that replays the
// player's decisions.
func (c *Config) PlayerTrack() (string, error) {
	for _, tc := range c.Tracks {
		if p := strings.ToLower(tc.Policy); p == "" || p == "scripted" {
			return tc.Name, nil
		}
	}
	return "", errors.New("no scripted track configured")
}

// Clone copies c deeply enough that SetDecisions on the copy leaves c alone.
func (c *Config) Clone() *Config {
	out := *c
	out.Tracks = make([]TrackConfig, len(c.Tracks))
	for i, tc := range c.Tracks {
		tc.Decisions = append([]Decision(nil), tc.Decisions...)
		out.Tracks[i] = tc
	}
	return &out
}

// SetDecisions replaces the decisions of the named scripted track and the
// opening week of every minimal track.
func (c *Config) SetDecisions(track string, weeks []schedule.Weekly) error {
	if len(weeks) == 0 {
		return errors.New("no decisions given")
	}
	found := false
	for i := range c.Tracks {
		tc := &c.Tracks[i]
		switch {
		case tc.Name == track:
			tc.Decisions = make([]Decision, 0, len(weeks))
			for _, w := range weeks {
				tc.Decisions = append(tc.Decisions, DecisionOf(w))
			}
			found = true
		case strings.EqualFold(tc.Policy, "minimal"):
			tc.Decisions = []Decision{DecisionOf(weeks[0])}
		}
	}
	if !found {
		return fmt.Errorf("no track named %q", track)
	}
	return nil
}

// Options converts the model settings and tracks into engine options.
func (c *Config) Options() (engine.Options, error) {
	opts := engine.DefaultOptions()
	opts.Weights = c.Model.InfectiousWeights
	opts.BedOccupancy = c.Hospital.BedOccupancy
	opts.InitialInfections = c.InitialInfections
	opts.Parallel = c.Parallel
	opts.Exposure.GatheringDestinations = c.Model.GatheringDestinations
	opts.Exposure.SymptomaticOutingProbability = c.Model.SymptomaticOutingProbability
	for name, m := range c.Model.Multipliers {
		a, err := schedule.ParseActivity(name)
		if err != nil {
			return opts, fmt.Errorf("multipliers: %w", err)
		}
		opts.Exposure.Multipliers[a] = m
	}

	policies, err := c.Policies()
	if err != nil {
		return opts, err
	}
	opts.Policies = policies
	return opts, nil
}

// LoadTables reads the reference tables, or builds a one-row table from
// the inline population.
func (c *Config) LoadTables() (*refdata.Tables, error) {
	if inline := c.Data.Population; inline.Total > 0 {
		row := refdata.PopulationRow{Region: c.inlineRegion(), Total: inline.Total}
		copy(row.Brackets[:], inline.Brackets)
		return &refdata.Tables{
			Population: []refdata.PopulationRow{row},
			Hospitals:  []refdata.HospitalRow{{Region: row.Region, Beds: inline.Beds}},
		}, nil
	}
	return refdata.LoadFiles(c.Data.PopulationCSV, c.Data.HospitalsCSV)
}

func (c *Config) inlineRegion() string {
	if c.Region != "" {
		return c.Region
	}
	return "inline"
}

// Setup resolves the region against tables into an engine setup.
func (c *Config) Setup(tables *refdata.Tables) (engine.Setup, error) {
	region := c.Region
	if c.Data.Population.Total > 0 {
		region = c.inlineRegion()
	}

	demo, err := tables.Demographics(region)
	if err != nil {
		return engine.Setup{}, err
	}
	lookup, err := c.CapacityLookup()
	if err != nil {
		return engine.Setup{}, err
	}
	beds, err := tables.TotalBeds(region, lookup)
	if err != nil {
		return engine.Setup{}, err
	}
	clinical, err := c.ClinicalTable()
	if err != nil {
		return engine.Setup{}, err
	}

	return engine.Setup{
		Demographics: demo,
		TotalBeds:    beds,
		Clinical:     clinical,
		Spawn:        c.Model.Spawn,
		Graph:        c.Model.Graph,
		Field:        c.Model.Field,
	}, nil
}

// ResolveSeed returns the configured seed, or a fresh one when it is zero.
func (c *Config) ResolveSeed() (int64, error) {
	if c.Seed != 0 {
		return c.Seed, nil
	}
	seed, err := entropy.NewSeed()
	if err != nil {
		return 0, fmt.Errorf("generate seed: %w", err)
	}
	return seed, nil
}
