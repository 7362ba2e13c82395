// Package storage persists populations as CSV files.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/copyleftdev/windlayout/internal/errors"
	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

const extension = ".csv"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// CoordinateList is a layout encoded in a single CSV cell as "x y;x y;...".
type CoordinateList []layout.Coordinate

// MarshalCSV implements gocsv.TypeMarshaller.
func (l CoordinateList) MarshalCSV() (string, error) {
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = strconv.FormatFloat(c.X, 'g', -1, 64) + " " + strconv.FormatFloat(c.Y, 'g', -1, 64)
	}
	return strings.Join(parts, ";"), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (l *CoordinateList) UnmarshalCSV(s string) error {
	*l = nil
	if strings.TrimSpace(s) == "" {
		return nil
	}
	for i, part := range strings.Split(s, ";") {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return fmt.Errorf("coordinate %d: want \"x y\", got %q", i, part)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("coordinate %d: %w", i, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("coordinate %d: %w", i, err)
		}
		*l = append(*l, layout.Coordinate{X: x, Y: y})
	}
	return nil
}

// IndividualRecord is one CSV row.
type IndividualRecord struct {
	Index    int            `csv:"index"`
	Fitness  float64        `csv:"fitness"`
	Scored   bool           `csv:"scored"`
	Turbines int            `csv:"turbines"`
	Layout   CoordinateList `csv:"layout"`
}

// PopulationStore saves and loads named populations under a directory.
type PopulationStore struct {
	dir string
}

// NewPopulationStore creates the directory if needed.
func NewPopulationStore(dir string) (*PopulationStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating population directory %s", dir).WithComponent("storage")
	}
	return &PopulationStore{dir: dir}, nil
}

func (s *PopulationStore) path(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", errors.Errorf("invalid population name %q", name).WithComponent("storage")
	}
	return filepath.Join(s.dir, name+extension), nil
}

// Save writes pop to name, replacing any previous content.
func (s *PopulationStore) Save(name string, pop layout.Population) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	records := make([]IndividualRecord, len(pop))
	for i, ind := range pop {
		f, ok := ind.Fitness()
		records[i] = IndividualRecord{
			Index:    i,
			Fitness:  f,
			Scored:   ok,
			Turbines: ind.Len(),
			Layout:   ind.Layout(),
		}
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for %s", name).WithOperation("Save").WithComponent("storage")
	}
	defer os.Remove(tmp.Name())

	if err := gocsv.Marshal(records, tmp); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing population %s", name).WithOperation("Save").WithComponent("storage")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing population %s", name).WithOperation("Save").WithComponent("storage")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replacing population %s", name).WithOperation("Save").WithComponent("storage")
	}
	return nil
}

// Load reads the population saved under name. Individuals saved without
// a current fitness come back unscored.
func (s *PopulationStore) Load(name string) (layout.Population, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening population %s", name).WithOperation("Load").WithComponent("storage")
	}
	defer f.Close()

	var records []IndividualRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, errors.Wrapf(err, "parsing population %s", name).WithOperation("Load").WithComponent("storage")
	}

	pop := make(layout.Population, len(records))
	for i, r := range records {
		if r.Turbines != len(r.Layout) {
			return nil, errors.Errorf("population %s row %d: turbines=%d but layout has %d coordinates",
				name, i, r.Turbines, len(r.Layout)).WithOperation("Load").WithComponent("storage")
		}
		ind := layout.NewIndividual(r.Layout)
		if r.Scored {
			ind.SetFitness(r.Fitness)
		}
		pop[i] = ind
	}
	return pop, nil
}

// List returns the names of saved populations in order.
func (s *PopulationStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", s.dir).WithOperation("List").WithComponent("storage")
	}
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), extension)
		if e.IsDir() || !ok || !validName.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
