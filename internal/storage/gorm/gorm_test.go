package gormstorage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmstage/choreo/internal/database"
	"github.com/swarmstage/choreo/pkg/core"
)

// newTestBackend creates a migrated Backend on a private in-memory SQLite DB.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	// Named shared-cache DSN: the pool's connections must all see the same
	// in-memory database, unique per test.
	db, err := database.GetSqliteDB("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)

	b := New(db, zerolog.Nop())
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSaveShowUpserts(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveShow(&core.ShowInfo{Name: "aurora", NumDrones: 3}))
	require.NoError(t, b.SaveShow(&core.ShowInfo{Name: "aurora", NumDrones: 5, Latitude: 47.5}))

	var count int64
	require.NoError(t, b.db.Model(&ShowRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var record ShowRecord
	require.NoError(t, b.db.Where("name = ?", "aurora").First(&record).Error)
	assert.Equal(t, 5, record.NumDrones)
	assert.Equal(t, 47.5, record.Latitude)
}

func TestFormationRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	markers := core.PointSet{
		{X: 0, Y: 0, Z: 6},
		{X: 10.5, Y: -2, Z: 6},
	}
	require.NoError(t, b.SaveFormation("grid", markers))

	loaded, err := b.LoadFormation("grid")
	require.NoError(t, err)
	assert.Equal(t, markers, loaded)

	missing, err := b.LoadFormation("ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMappingRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveMapping("entry-1", core.Mapping{2, core.Unassigned, 0}))

	loaded, err := b.LoadMapping("entry-1")
	require.NoError(t, err)
	assert.Equal(t, core.Mapping{2, core.Unassigned, 0}, loaded)

	missing, err := b.LoadMapping("entry-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMappingUpsertKeepsOneRow(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveMapping("entry-1", core.Mapping{0, 1}))
	require.NoError(t, b.SaveMapping("entry-1", core.Mapping{1, 0}))

	var count int64
	require.NoError(t, b.db.Model(&MappingRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	loaded, err := b.LoadMapping("entry-1")
	require.NoError(t, err)
	assert.Equal(t, core.Mapping{1, 0}, loaded)
}

func TestInfluenceCurveRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	keyframes := []core.Keyframe{
		{Frame: -1, Value: 0, Interpolation: core.InterpolationLinear},
		{Frame: 100, Value: 1, Interpolation: core.InterpolationBezier,
			HandleLeft: core.HandleAutoClamped, HandleRight: core.HandleVector},
	}
	require.NoError(t, b.SaveInfluenceCurve("entry-1", 3, keyframes))

	loaded, err := b.LoadInfluenceCurve("entry-1", 3)
	require.NoError(t, err)
	assert.Equal(t, keyframes, loaded)

	missing, err := b.LoadInfluenceCurve("entry-1", 4)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInfluenceCurveUpsertAndDelete(t *testing.T) {
	b := newTestBackend(t)

	first := []core.Keyframe{{Frame: 0, Value: 0, Interpolation: core.InterpolationLinear}}
	second := []core.Keyframe{{Frame: 5, Value: 1, Interpolation: core.InterpolationLinear}}

	require.NoError(t, b.SaveInfluenceCurve("entry-1", 0, first))
	require.NoError(t, b.SaveInfluenceCurve("entry-1", 0, second))

	var count int64
	require.NoError(t, b.db.Model(&CurveRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	loaded, err := b.LoadInfluenceCurve("entry-1", 0)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)

	require.NoError(t, b.SaveInfluenceCurve("entry-1", 0, nil))
	loaded, err = b.LoadInfluenceCurve("entry-1", 0)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
