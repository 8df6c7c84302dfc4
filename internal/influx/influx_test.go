package influx

import (
	"compress/gzip"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/swarmstage/choreo/internal/geo"
	"github.com/swarmstage/choreo/internal/safety"
	"github.com/swarmstage/choreo/pkg/core"
)

func newBackupReporter(t *testing.T) (*Reporter, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metrics.lp.gz")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("create backup file: %v", err)
	}

	r := NewReporter(zerolog.Nop(), "aurora", path)
	r.BackupWriter = gzip.NewWriter(file)
	return r, path
}

func readBackup(t *testing.T, path string) string {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open backup file: %v", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("open gzip reader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read backup file: %v", err)
	}
	return string(data)
}

func TestWriteSafetyCheckToBackup(t *testing.T) {
	r, path := newBackupReporter(t)

	result := &safety.CheckResult{
		Frame:       120,
		MinDistance: 1.25,
		PairsBelowThreshold: []geo.PointPair{
			{P: core.Point3D{}, Q: core.Point3D{X: 1.25}},
			{P: core.Point3D{X: 1.25}, Q: core.Point3D{X: 2.5}},
		},
	}
	if err := r.WriteSafetyCheck(result); err != nil {
		t.Fatalf("WriteSafetyCheck failed: %v", err)
	}
	r.Close()

	line := readBackup(t, path)
	for _, want := range []string{
		"safety_check",
		"show=aurora",
		"frame=120i",
		"pairs_below_threshold=2i",
		"min_distance=1.25",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("backup line missing %q: %s", want, line)
		}
	}
}

func TestWriteSafetyCheckOmitsInfiniteDistance(t *testing.T) {
	r, path := newBackupReporter(t)

	result := &safety.CheckResult{
		Frame:       0,
		MinDistance: math.Inf(1),
	}
	if err := r.WriteSafetyCheck(result); err != nil {
		t.Fatalf("WriteSafetyCheck failed: %v", err)
	}
	r.Close()

	line := readBackup(t, path)
	if strings.Contains(line, "min_distance") {
		t.Errorf("expected min_distance to be omitted for an empty fleet: %s", line)
	}
	if !strings.Contains(line, "safe=true") {
		t.Errorf("expected safe=true: %s", line)
	}
}

func TestWriteRecalculationToBackup(t *testing.T) {
	r, path := newBackupReporter(t)

	if err := r.WriteRecalculation(1500*time.Millisecond, 4, 100); err != nil {
		t.Fatalf("WriteRecalculation failed: %v", err)
	}
	r.Close()

	line := readBackup(t, path)
	for _, want := range []string{
		"recalculation",
		"show=aurora",
		"duration_ms=1500",
		"entries=4i",
		"drones=100i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("backup line missing %q: %s", want, line)
		}
	}
}

func TestWritePointWithoutClientOrBackup(t *testing.T) {
	r := NewReporter(zerolog.Nop(), "aurora", "")

	err := r.WriteRecalculation(time.Second, 1, 1)
	if err == nil {
		t.Fatal("expected an error when neither client nor backup writer is available")
	}
}
