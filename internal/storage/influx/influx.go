// Package influxstorage implements the storage.Backend interface by writing
// score samples to InfluxDB, falling back to a gzipped line protocol file
// when the server is unreachable.
package influxstorage

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/geo"
	"github.com/dronegrade/harness/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementScore   = "score"
	MeasurementEvents  = "score_events"
	MeasurementTrack   = "track"
	MeasurementSession = "sessions"
)

// RetentionSeconds is the retention of a newly created bucket.
const RetentionSeconds = 60 * 60 * 24 * 90

// Backend writes session data as InfluxDB points.
type Backend struct {
	cfg        config.InfluxConfig
	georef     *geo.Georef
	logger     zerolog.Logger
	backupPath string

	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	backupFile   *os.File
	IsValid      bool

	mu        sync.Mutex
	sessionID string
	errWG     sync.WaitGroup
}

// New creates an InfluxDB backend. backupPath receives line protocol when
// the server cannot be reached.
func New(cfg config.InfluxConfig, georef *geo.Georef, backupPath string, logger zerolog.Logger) *Backend {
	return &Backend{
		cfg:        cfg,
		georef:     georef,
		logger:     logger,
		backupPath: backupPath,
	}
}

// Init establishes a connection to InfluxDB.
func (b *Backend) Init() error {
	b.Client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// validate client connection health
	running, err := b.Client.Ping(ctx)
	if err != nil || !running {
		b.IsValid = false
		b.logger.Info().Str("backupPath", b.backupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")

		file, err := os.OpenFile(b.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("error creating backup file: %v", err)
		}
		b.backupFile = file
		b.BackupWriter = gzip.NewWriter(file)
		return nil
	}

	b.IsValid = true
	if err := b.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	b.Writer = b.Client.WriteAPI(b.cfg.Org, b.cfg.Bucket)
	errorsCh := b.Writer.Errors()
	b.errWG.Add(1)
	go func() {
		defer b.errWG.Done()
		for writeErr := range errorsCh {
			b.logger.Error().Err(writeErr).Str("bucket", b.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()

	b.logger.Info().Str("url", b.cfg.URL()).Str("bucket", b.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (b *Backend) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := b.Client.OrganizationsAPI()

	// ensure org exists
	org, err := orgs.FindOrganizationByName(ctx, b.cfg.Org)
	if err != nil {
		b.logger.Info().Str("org", b.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, b.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", b.cfg.Org, err)
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := b.Client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err != nil {
		b.logger.Info().Str("bucket", b.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = b.Client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: RetentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", b.cfg.Bucket, err)
		}
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (b *Backend) Close() error {
	if b.Writer != nil {
		b.Writer.Flush()
	}
	if b.Client != nil {
		b.Client.Close()
	}
	b.errWG.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BackupWriter != nil {
		if err := b.BackupWriter.Close(); err != nil {
			return fmt.Errorf("closing backup writer: %w", err)
		}
		b.BackupWriter = nil
	}
	if b.backupFile != nil {
		err := b.backupFile.Close()
		b.backupFile = nil
		return err
	}
	return nil
}

// StartSession tags subsequent points with the session id.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	b.sessionID = s.ID
	b.mu.Unlock()

	p := influxdb2_write.NewPointWithMeasurement(MeasurementSession).
		AddTag("session", s.ID).
		AddTag("state", "started").
		AddField("initialPoints", s.Grading.InitialPoints).
		AddField("actors", len(s.Actors)).
		SetTime(s.StartTime)
	return b.WritePoint(p)
}

// EndSession writes the final result.
func (b *Backend) EndSession(r core.SessionResult) error {
	p := b.point(MeasurementSession).
		AddTag("state", "ended").
		AddTag("reason", string(r.Reason)).
		AddField("points", r.Points).
		AddField("detections", r.Detections).
		AddField("elapsedMs", r.Elapsed.Milliseconds()).
		SetTime(r.EndTime)
	if err := b.WritePoint(p); err != nil {
		return err
	}
	if b.Writer != nil {
		b.Writer.Flush()
	}
	return nil
}

// RecordTick writes a score snapshot.
func (b *Backend) RecordTick(s core.ScoreSnapshot) error {
	p := b.point(MeasurementScore).
		AddField("points", s.Points).
		AddField("detections", s.Detections).
		AddField("elapsedMs", s.Elapsed.Milliseconds()).
		AddField("running", s.Running).
		SetTime(s.Time)
	return b.WritePoint(p)
}

// RecordEvent writes a score change.
func (b *Backend) RecordEvent(e core.ScoreEvent) error {
	p := b.point(MeasurementEvents).
		AddTag("kind", string(e.Kind)).
		AddField("delta", e.Delta).
		AddField("points", e.Points).
		AddField("elapsedMs", e.Elapsed.Milliseconds()).
		SetTime(e.Time)
	if e.Label != "" {
		p.AddTag("label", e.Label)
	}
	return b.WritePoint(p)
}

// RecordTrack writes a drone position in engine units and WGS84.
func (b *Backend) RecordTrack(t core.TrackSample) error {
	lon, lat, alt := b.georef.LonLat(t.Position)
	p := b.point(MeasurementTrack).
		AddField("x", t.Position.X).
		AddField("y", t.Position.Y).
		AddField("z", t.Position.Z).
		AddField("lon", lon).
		AddField("lat", lat).
		AddField("alt", alt).
		SetTime(t.Time)
	return b.WritePoint(p)
}

func (b *Backend) point(measurement string) *influxdb2_write.Point {
	b.mu.Lock()
	id := b.sessionID
	b.mu.Unlock()
	return influxdb2_write.NewPointWithMeasurement(measurement).AddTag("session", id)
}

// WritePoint writes a point to InfluxDB or backup file.
func (b *Backend) WritePoint(point *influxdb2_write.Point) error {
	if b.IsValid {
		b.Writer.WritePoint(point)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := b.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}
