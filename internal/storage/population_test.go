package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/windlayout/internal/optimization/layout"
)

func samplePopulation() layout.Population {
	a := layout.NewIndividual([]layout.Coordinate{{X: 10.5, Y: 20.25}, {X: 400, Y: 0.1}})
	a.SetFitness(1234.5678)
	b := layout.NewIndividual([]layout.Coordinate{{X: 1e-9, Y: 1999.999999}})
	c := layout.NewIndividual(nil)
	c.SetFitness(0)
	return layout.Population{a, b, c}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewPopulationStore(filepath.Join(t.TempDir(), "pops"))
	require.NoError(t, err)

	pop := samplePopulation()
	require.NoError(t, store.Save("run-1", pop))

	loaded, err := store.Load("run-1")
	require.NoError(t, err)
	require.Len(t, loaded, len(pop))

	for i := range pop {
		assert.Equal(t, pop[i].Layout(), loaded[i].Layout(), "individual %d", i)
		wantF, wantOK := pop[i].Fitness()
		gotF, gotOK := loaded[i].Fitness()
		assert.Equal(t, wantOK, gotOK)
		if wantOK {
			assert.Equal(t, wantF, gotF)
		}
	}
}

func TestSaveFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPopulationStore(dir)
	require.NoError(t, err)

	ind := layout.NewIndividual([]layout.Coordinate{{X: 1, Y: 2}, {X: 3.5, Y: 4}})
	ind.SetFitness(9)
	require.NoError(t, store.Save("format", layout.Population{ind}))

	data, err := os.ReadFile(filepath.Join(dir, "format.csv"))
	require.NoError(t, err)
	assert.Equal(t, "index,fitness,scored,turbines,layout\n0,9,true,2,1 2;3.5 4\n", string(data))
}

func TestSaveReplaces(t *testing.T) {
	store, err := NewPopulationStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("p", samplePopulation()))
	require.NoError(t, store.Save("p", samplePopulation()[:1]))

	loaded, err := store.Load("p")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPopulationStore(dir)
	require.NoError(t, err)

	_, err = store.Load("missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = store.Load("../escape")
	assert.Error(t, err)

	bad := "index,fitness,scored,turbines,layout\n0,1,true,3,1 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mismatch.csv"), []byte(bad), 0644))
	_, err = store.Load("mismatch")
	assert.Error(t, err)

	garbled := "index,fitness,scored,turbines,layout\n0,1,true,1,1 two\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbled.csv"), []byte(garbled), 0644))
	_, err = store.Load("garbled")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPopulationStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("zeta", samplePopulation()))
	require.NoError(t, store.Save("alpha", samplePopulation()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestCoordinateListCSV(t *testing.T) {
	tests := []struct {
		in      string
		want    CoordinateList
		wantErr bool
	}{
		{"", nil, false},
		{"1 2", CoordinateList{{X: 1, Y: 2}}, false},
		{"1 2; 3.25 -4", CoordinateList{{X: 1, Y: 2}, {X: 3.25, Y: -4}}, false},
		{"1", nil, true},
		{"1 2;x 3", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var l CoordinateList
			err := l.UnmarshalCSV(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, l)
		})
	}
}
