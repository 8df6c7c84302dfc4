package memory

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmstage/choreo/internal/config"
	"github.com/swarmstage/choreo/pkg/core"
)

func testKeyframes() []core.Keyframe {
	return []core.Keyframe{
		{Frame: -1, Value: 0, Interpolation: core.InterpolationLinear},
		{Frame: 100, Value: 1, Interpolation: core.InterpolationBezier,
			HandleLeft: core.HandleAutoClamped, HandleRight: core.HandleAutoClamped},
	}
}

func TestMappingRoundTrip(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.SaveMapping("entry-1", core.Mapping{2, 0, core.Unassigned}))

	loaded, err := b.LoadMapping("entry-1")
	require.NoError(t, err)
	assert.Equal(t, core.Mapping{2, 0, core.Unassigned}, loaded)

	missing, err := b.LoadMapping("entry-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMappingSaveIsolatesCaller(t *testing.T) {
	b := New(config.MemoryConfig{})

	mapping := core.Mapping{0, 1}
	require.NoError(t, b.SaveMapping("entry-1", mapping))
	mapping[0] = 99

	loaded, err := b.LoadMapping("entry-1")
	require.NoError(t, err)
	assert.Equal(t, core.Mapping{0, 1}, loaded)
}

func TestInfluenceCurveRoundTrip(t *testing.T) {
	b := New(config.MemoryConfig{})

	require.NoError(t, b.SaveInfluenceCurve("entry-1", 0, testKeyframes()))

	loaded, err := b.LoadInfluenceCurve("entry-1", 0)
	require.NoError(t, err)
	assert.Equal(t, testKeyframes(), loaded)

	missing, err := b.LoadInfluenceCurve("entry-1", 7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNilKeyframesDeleteCurve(t *testing.T) {
	b := New(config.MemoryConfig{})

	require.NoError(t, b.SaveInfluenceCurve("entry-1", 0, testKeyframes()))
	require.NoError(t, b.SaveInfluenceCurve("entry-1", 0, nil))

	loaded, err := b.LoadInfluenceCurve("entry-1", 0)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveShowWithNewNameResetsPlan(t *testing.T) {
	b := New(config.MemoryConfig{})

	require.NoError(t, b.SaveShow(&core.ShowInfo{Name: "aurora", NumDrones: 3}))
	require.NoError(t, b.SaveMapping("entry-1", core.Mapping{0, 1, 2}))

	require.NoError(t, b.SaveShow(&core.ShowInfo{Name: "solstice", NumDrones: 3}))

	loaded, err := b.LoadMapping("entry-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})

	require.NoError(t, b.SaveShow(&core.ShowInfo{Name: "aurora", NumDrones: 2, Latitude: 47.5, Longitude: 19.1}))
	require.NoError(t, b.SaveFormation("circle", core.PointSet{{X: 1, Y: 2, Z: 3}}))
	require.NoError(t, b.SaveMapping("entry-1", core.Mapping{1, 0}))
	require.NoError(t, b.SaveInfluenceCurve("entry-1", 1, testKeyframes()))

	path, err := b.Export()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "aurora.plan.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Show struct {
			Name      string `json:"name"`
			NumDrones int    `json:"numDrones"`
		} `json:"show"`
		Formations map[string][][3]float64               `json:"formations"`
		Mappings   map[string][]int                      `json:"mappings"`
		Curves     map[string]map[string][]core.Keyframe `json:"curves"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "aurora", doc.Show.Name)
	assert.Equal(t, 2, doc.Show.NumDrones)
	assert.Equal(t, [][3]float64{{1, 2, 3}}, doc.Formations["circle"])
	assert.Equal(t, []int{1, 0}, doc.Mappings["entry-1"])
	require.Contains(t, doc.Curves, "entry-1")
	assert.Equal(t, testKeyframes(), doc.Curves["entry-1"]["1"])
}

func TestExportCompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	require.NoError(t, b.SaveShow(&core.ShowInfo{Name: "aurora", NumDrones: 1}))

	path, err := b.Export()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "aurora.plan.json.gz"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	zr, err := gzip.NewReader(file)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "show")
}

func TestExportWithoutShow(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	_, err := b.Export()
	require.Error(t, err)
}
