package program

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const fileVersion = 1

// ErrReadOnlyFormat is returned when saving to a format that is import-only.
var ErrReadOnlyFormat = errors.New("program format is read-only")

// StepEntry is the file form of a step: a clock string plus raw levels.
type StepEntry struct {
	Time   string `toml:"time" json:"time" yaml:"time"`
	Levels []int  `toml:"levels" json:"levels" yaml:"levels,flow"`
}

// file represents a complete program file for TOML and YAML marshaling.
type file struct {
	Version int         `toml:"version" yaml:"version"`
	Name    string      `toml:"name" yaml:"name,omitempty"`
	Steps   []StepEntry `toml:"steps" yaml:"steps"`
}

// ParseEntries converts file entries into validated steps.
func ParseEntries(entries []StepEntry) ([]LightingStep, error) {
	steps := make([]LightingStep, 0, len(entries))
	for i, entry := range entries {
		hour, minute, err := ParseClock(entry.Time)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if len(entry.Levels) != ChannelCount {
			return nil, fmt.Errorf("step %d: %w: got %d channel levels, want %d",
				i, ErrInvalidStep, len(entry.Levels), ChannelCount)
		}

		levels := make([]uint8, ChannelCount)
		for ch, v := range entry.Levels {
			if v < 0 || v > MaxLevel {
				return nil, fmt.Errorf("step %d: %w: channel %d level %d out of range 0-%d",
					i, ErrInvalidStep, ch+1, v, MaxLevel)
			}
			levels[ch] = uint8(v)
		}
		steps = append(steps, LightingStep{Hour: hour, Minute: minute, Levels: levels})
	}
	return steps, nil
}

// Entries converts steps into their file form.
func Entries(steps []LightingStep) []StepEntry {
	entries := make([]StepEntry, len(steps))
	for i, step := range steps {
		levels := make([]int, len(step.Levels))
		for ch, v := range step.Levels {
			levels[ch] = int(v)
		}
		entries[i] = StepEntry{Time: step.Clock(), Levels: levels}
	}
	return entries
}

type format int

const (
	formatTOML format = iota
	formatYAML
	formatPMF
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pmf":
		return formatPMF
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatTOML
	}
}

// LoadFile reads a program from disk. Files ending in .pmf are read in the
// PLed project format, .yaml and .yml as YAML, everything else as TOML.
func LoadFile(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, fmt.Errorf("failed to read program file: %w", err)
	}

	var f file
	switch formatOf(path) {
	case formatPMF:
		return parsePMF(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	case formatYAML:
		err = yaml.Unmarshal(data, &f)
	default:
		err = toml.Unmarshal(data, &f)
	}
	if err != nil {
		return Program{}, fmt.Errorf("failed to parse program file: %w", err)
	}

	steps, err := ParseEntries(f.Steps)
	if err != nil {
		return Program{}, err
	}

	name := f.Name
	if name == "" {
		name = DefaultName
	}
	return Program{Name: name, Steps: steps}, nil
}

// SaveFile writes a program to disk in the format named by its extension.
func SaveFile(path string, p Program) error {
	fmtType := formatOf(path)
	if fmtType == formatPMF {
		return fmt.Errorf("%w: %s", ErrReadOnlyFormat, path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create program directory: %w", err)
	}

	f := file{Version: fileVersion, Name: p.Name, Steps: Entries(p.Steps)}
	var data []byte
	var err error
	if fmtType == formatYAML {
		data, err = yaml.Marshal(f)
	} else {
		data, err = toml.Marshal(f)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal program: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write program file: %w", writeErr)
	}
	return nil
}

// Store keeps the current program in memory, backed by a file.
type Store struct {
	path    string
	mu      sync.RWMutex
	program Program
}

// NewStore creates a store for the given file, holding the default program
// until Load is called.
func NewStore(path string) *Store {
	if path == "" {
		path = "program.toml"
	}
	return &Store{path: path, program: Default()}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the backing file. A missing file keeps the default program.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	p, err := LoadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.program = p
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current program.
func (s *Store) Get() Program {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]LightingStep, len(s.program.Steps))
	for i, step := range s.program.Steps {
		steps[i] = LightingStep{Hour: step.Hour, Minute: step.Minute, Levels: append([]uint8(nil), step.Levels...)}
	}
	return Program{Name: s.program.Name, Steps: steps}
}

// Replace validates p, persists it and makes it the current program.
func (s *Store) Replace(p Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Name == "" {
		p.Name = DefaultName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := SaveFile(s.path, p); err != nil {
		return err
	}
	s.program = p
	return nil
}
