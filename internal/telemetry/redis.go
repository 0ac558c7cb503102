// Package telemetry republishes controller state onto Redis for downstream
// consumers, the same HSet-then-Publish idiom the reference fleet's Redis
// client uses for vehicle and battery state. It is a read-only observer:
// it never calls TriggerReset, TriggerError, or FeedByte on the
// controller it watches.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/librescoot/sensor-module/internal/controller"
)

// Redis keys the bridge writes into.
const (
	KeyModule         = "sensor-module"
	FieldState        = "state"
	FieldUptimeMs     = "uptime-ms"
	FieldErrorFlags   = "error-flags"
	FieldRxErrCount   = "rx-err-count"
	FieldTxErrCount   = "tx-err-count"
	FieldSampleRate   = "sample-rate"
	FieldStatusPeriod = "status-period-ms"
	FieldSensorOn     = "sensor-enable"
	FieldSnapshot     = "snapshot"
)

// Client wraps a go-redis client with the hash-write-then-publish helpers
// the bridge needs, mirroring pkg/redis/client.go in the reference fleet.
type Client struct {
	rdb *redis.Client
	ctx context.Context
}

// NewClient connects to addr/db with password and verifies connectivity
// with a PING, just like the reference fleet's redis.New.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("telemetry: connect to redis: %w", err)
	}
	return &Client{rdb: rdb, ctx: ctx}, nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) writeAndPublishInt(key, field string, value int) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, fmt.Sprintf("%s:%d", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

func (c *Client) writeAndPublishBytes(key, field string, value []byte) error {
	pipe := c.rdb.Pipeline()
	pipe.HSet(c.ctx, key, field, value)
	pipe.Publish(c.ctx, key, field)
	_, err := pipe.Exec(c.ctx)
	return err
}

// wireSnapshot is the CBOR-encoded projection of controller.Snapshot
// published alongside the individual hash fields, the same role CBOR plays
// framing commands on the reference fleet's UART link.
type wireSnapshot struct {
	State          uint8  `cbor:"state"`
	UptimeMs       uint32 `cbor:"uptime_ms"`
	ErrorFlags     uint32 `cbor:"error_flags"`
	RxErrCount     uint32 `cbor:"rx_err_cnt"`
	TxErrCount     uint32 `cbor:"tx_err_cnt"`
	SensorFault    uint8  `cbor:"sensor_fault"`
	SampleRate     uint16 `cbor:"sample_rate"`
	StatusPeriodMs uint16 `cbor:"status_period_ms"`
	SensorEnable   bool   `cbor:"sensor_enable"`
}

// Publish writes one snapshot of controller state into Redis: the
// individual fields for simple consumers, plus a CBOR-encoded blob for
// consumers that want the whole record in one read.
func (c *Client) Publish(snap controller.Snapshot) error {
	boolToInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	fields := map[string]int{
		FieldState:        int(snap.State),
		FieldUptimeMs:     int(snap.UptimeMs),
		FieldErrorFlags:   int(snap.ErrorFlags),
		FieldRxErrCount:   int(snap.RxErrCount),
		FieldTxErrCount:   int(snap.TxErrCount),
		FieldSampleRate:   int(snap.SampleRate),
		FieldStatusPeriod: int(snap.StatusPeriodMs),
		FieldSensorOn:     boolToInt(snap.SensorEnable),
	}
	for field, value := range fields {
		if err := c.writeAndPublishInt(KeyModule, field, value); err != nil {
			return fmt.Errorf("telemetry: publish %s: %w", field, err)
		}
	}

	blob, err := cbor.Marshal(wireSnapshot{
		State:          uint8(snap.State),
		UptimeMs:       snap.UptimeMs,
		ErrorFlags:     snap.ErrorFlags,
		RxErrCount:     snap.RxErrCount,
		TxErrCount:     snap.TxErrCount,
		SensorFault:    uint8(snap.SensorFault),
		SampleRate:     snap.SampleRate,
		StatusPeriodMs: snap.StatusPeriodMs,
		SensorEnable:   snap.SensorEnable,
	})
	if err != nil {
		return fmt.Errorf("telemetry: encode cbor snapshot: %w", err)
	}
	return c.writeAndPublishBytes(KeyModule, FieldSnapshot, blob)
}

// Bridge periodically polls a controller and publishes its state to Redis
// at the cadence the live parameter store reports for status_period_ms.
type Bridge struct {
	client  *Client
	poll    func() controller.Snapshot
	stopCh  chan struct{}
	minWait time.Duration
}

// NewBridge returns a Bridge that calls poll to obtain each snapshot.
func NewBridge(client *Client, poll func() controller.Snapshot) *Bridge {
	return &Bridge{
		client:  client,
		poll:    poll,
		stopCh:  make(chan struct{}),
		minWait: 50 * time.Millisecond,
	}
}

// Run publishes snapshots until Stop is called, sleeping for the
// snapshot's own status_period_ms between publishes.
func (b *Bridge) Run() {
	for {
		snap := b.poll()
		if err := b.client.Publish(snap); err != nil {
			log.Printf("telemetry: publish failed: %v", err)
		}

		wait := time.Duration(snap.StatusPeriodMs) * time.Millisecond
		if wait < b.minWait {
			wait = b.minWait
		}
		select {
		case <-b.stopCh:
			return
		case <-time.After(wait):
		}
	}
}

// Stop signals Run to return: a Run waiting between publishes returns at
// once, and one in the middle of a publish returns when that publish ends.
func (b *Bridge) Stop() { close(b.stopCh) }
