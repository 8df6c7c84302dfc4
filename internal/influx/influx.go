package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/swarmstage/choreo/internal/safety"
)

// BucketShowMetrics receives per-show planning and safety measurements.
const BucketShowMetrics = "show_metrics"

// Reporter handles InfluxDB connections and writes.
type Reporter struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string
	ShowName     string
}

// NewReporter creates a new InfluxDB reporter for the given show.
func NewReporter(log zerolog.Logger, showName string, backupPath string) *Reporter {
	return &Reporter{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: []string{BucketShowMetrics},
		Logger:      log,
		BackupPath:  backupPath,
		ShowName:    showName,
	}
}

// Connect establishes a connection to InfluxDB.
func (r *Reporter) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	r.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := r.Client.Ping(context.Background())

	if err != nil || !running {
		r.IsValid = false
		// create backup writer
		if r.BackupWriter == nil {
			r.Logger.Info().Str("backupPath", r.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(r.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			r.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		r.IsValid = true
	}

	if r.IsValid {
		err = r.setupOrganizationAndBuckets()
		if err != nil {
			return err
		}
		r.createWriters()
		r.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		r.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (r *Reporter) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	_, err := r.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		r.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = r.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			r.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := r.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		r.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range r.BucketNames {
		_, err = r.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			r.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = r.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90, // 90 days
			})
			if err != nil {
				r.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

func (r *Reporter) createWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range r.BucketNames {
		r.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		r.Writers[bucket] = r.Client.WriteAPI(orgName, bucket)

		errorsCh := r.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				r.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)

		r.Logger.Trace().Str("bucket", bucket).Msg("InfluxDB writer created")
	}

	r.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (r *Reporter) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if r.IsValid {
		if _, ok := r.Writers[bucket]; !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		r.Writers[bucket].WritePoint(point)
	} else {
		if r.BackupWriter == nil {
			return fmt.Errorf("influxDB client not initialized and backup writer not available")
		}

		lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
		_, err := r.BackupWriter.Write([]byte(lineProtocol + "\n"))
		if err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
		}
	}

	return nil
}

// WriteSafetyCheck records the result of a proximity check at a single frame.
func (r *Reporter) WriteSafetyCheck(result *safety.CheckResult) error {
	point := influxdb2_write.NewPointWithMeasurement("safety_check").
		AddTag("show", r.ShowName).
		AddField("frame", result.Frame).
		AddField("pairs_below_threshold", len(result.PairsBelowThreshold)).
		AddField("safe", result.IsSafe()).
		SetTime(time.Now())

	if !math.IsInf(result.MinDistance, 1) {
		point.AddField("min_distance", result.MinDistance)
	}

	return r.WritePoint(BucketShowMetrics, point)
}

// WriteRecalculation records timing for one transition recalculation pass.
func (r *Reporter) WriteRecalculation(duration time.Duration, numEntries int, numDrones int) error {
	point := influxdb2_write.NewPointWithMeasurement("recalculation").
		AddTag("show", r.ShowName).
		AddField("duration_ms", float64(duration.Microseconds())/1000.0).
		AddField("entries", numEntries).
		AddField("drones", numDrones).
		SetTime(time.Now())

	return r.WritePoint(BucketShowMetrics, point)
}

// Close flushes all pending writes and closes the client or backup file.
func (r *Reporter) Close() {
	if r.IsValid {
		for _, writer := range r.Writers {
			writer.Flush()
		}
		r.Client.Close()
	}
	if r.BackupWriter != nil {
		if err := r.BackupWriter.Close(); err != nil {
			r.Logger.Error().Err(err).Msg("Error closing InfluxDB backup writer")
		}
	}
}
