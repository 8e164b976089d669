// ekfd - inertial state estimator daemon
//
// Fuses IMU, barometric, and GPS measurements into a continuously
// updated position/velocity/attitude estimate and publishes it over
// MAVLink telemetry.

package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phoenix-pilot/ekfd/internal/algebra"
	"github.com/phoenix-pilot/ekfd/internal/calib"
	"github.com/phoenix-pilot/ekfd/internal/correction"
	"github.com/phoenix-pilot/ekfd/internal/ekf"
	"github.com/phoenix-pilot/ekfd/internal/mavlink"
	"github.com/phoenix-pilot/ekfd/internal/motor"
	"github.com/phoenix-pilot/ekfd/internal/sensors"
	"github.com/phoenix-pilot/ekfd/pkg/utils"
)

var (
	version = "1.0.0"

	// Device paths
	imuDev  = flag.String("imu-dev", "/dev/sensors/imu", "IMU sensor-manager device path")
	baroDev = flag.String("baro-dev", "/dev/sensors/baro", "Barometer sensor-manager device path")
	gpsDev  = flag.String("gps-dev", "", "GPS sensor-manager device path (empty disables GPS fusion)")

	// Calibration
	calibFile = flag.String("calib", "/etc/calib.conf", "Calibration file path")

	// Motors
	pwmPattern   = flag.String("pwm-pattern", "", "Per-motor PWM file path pattern, e.g. /dev/pwm%d (empty disables motor output)")
	magmotPeriod = flag.Duration("magmot-period", 100*time.Millisecond, "Throttle-dependent mag interference recalculation period")

	// Fusion
	fuseGpsVel = flag.Bool("gps-vel", false, "Fuse GPS velocity in addition to position")

	// Telemetry
	mavlinkPort   = flag.String("mavlink-port", "", "MAVLink serial port (empty disables telemetry)")
	mavlinkBaud   = flag.Int("mavlink-baud", 57600, "MAVLink baud rate")
	telemetryRate = flag.Duration("telemetry-period", time.Second, "Heartbeat/position emission period")
	sysID         = flag.Int("sys-id", 1, "MAVLink system id")
	originLat     = flag.Float64("origin-lat", 0, "Latitude of the local-frame origin, degrees")
	originLon     = flag.Float64("origin-lon", 0, "Longitude of the local-frame origin, degrees")

	// Logging
	logLevel  = flag.String("log-level", "info", "Log level (debug/info/warn/error)")
	logOutput = flag.String("log-output", "stdout", "Log output (stdout or file path)")
)

// EKFD wires the estimator's subsystems together for one process run.
type EKFD struct {
	log *logrus.Logger

	store    calib.Store
	pipeline *correction.Pipeline
	client   *sensors.Client
	motors   *motor.Controller
	facade   *ekf.Facade
	mavlink  *mavlink.Transport

	bootTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func main() {
	flag.Parse()

	fmt.Printf("ekfd %s - inertial state estimator\n", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	d := &EKFD{ctx: ctx, cancel: cancel, bootTime: time.Now()}

	if err := d.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "initialize: %v\n", err)
		os.Exit(1)
	}

	d.Start()
	d.log.Info("ekfd is running")

	<-sigChan
	d.log.Info("shutdown signal received")

	d.Shutdown()
}

// Initialize loads calibration, opens devices, and builds every
// subsystem. A missing or partly unreadable calibration file degrades to
// built-in defaults; any configured sensor device that cannot be opened
// is fatal, and baro or GPS is not opened when its path is empty.
func (d *EKFD) Initialize() error {
	d.log = utils.NewLogger(*logLevel, *logOutput)

	d.store = calib.DefaultStore()
	if f, err := os.Open(*calibFile); err != nil {
		d.log.WithError(err).Warn("calibration file unreadable, using defaults")
	} else {
		d.store = calib.Load(f, d.log)
		f.Close()
	}

	if *pwmPattern != "" {
		writers := make([]motor.Writer, 0, calib.NumMotors)
		for i := 0; i < calib.NumMotors; i++ {
			f, err := os.OpenFile(fmt.Sprintf(*pwmPattern, i), os.O_WRONLY, 0)
			if err != nil {
				for _, w := range writers {
					w.Close()
				}
				return fmt.Errorf("open pwm for motor %d: %w", i, err)
			}
			writers = append(writers, f)
		}
		d.motors = motor.NewController(writers, d.store.MotLin, d.log)
	}

	magChain := correction.Chain{correction.NewMagIronCorrector(d.store.MagIron)}
	accelChain := correction.Chain{correction.NewAccOrthCorrector(d.store.AccOrth)}
	d.pipeline = correction.New(magChain, accelChain, d.log)

	if d.motors != nil {
		magmot := correction.NewMagMotCorrector(d.store.MagMot, d.motors.Throttles, *magmotPeriod)
		if err := magmot.Recalc(); err != nil {
			d.log.WithError(err).Warn("initial magmot recalculation failed")
		}
		d.pipeline.Register(magmot)
	}

	var baro, gps sensors.Device
	if *baroDev != "" {
		baro = sensors.NewFileDevice()
	}
	if *gpsDev != "" {
		gps = sensors.NewFileDevice()
	}
	d.client = sensors.New(sensors.NewFileDevice(), baro, gps, d.pipeline)
	if err := d.client.Open(*imuDev, *baroDev, *gpsDev); err != nil {
		return err
	}

	// Seed the magnetic-field state from the first reading so the filter
	// does not start with a large mag innovation.
	initialMag := algebra.Vec3{X: 1}
	if evt, err := d.client.ReadIMU(); err != nil {
		d.log.WithError(err).Warn("initial imu read failed, seeding mag state with default")
	} else {
		initialMag = evt.Mag
	}

	const nominalDt = 0.005
	d.facade = ekf.New(ekf.DefaultConfig(), initialMag, nominalDt, d.client, d.log, *fuseGpsVel)

	if *mavlinkPort != "" {
		t, err := mavlink.Open(*mavlinkPort, *mavlinkBaud, uint8(*sysID), 1, d.log)
		if err != nil {
			return err
		}
		d.mavlink = t
	}

	return nil
}

// Start launches the estimator loop, the correction scheduler, and the
// telemetry emitter.
func (d *EKFD) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pipeline.Run(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.facade.Run(d.ctx)
	}()

	if d.mavlink != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.mavlink.Run(d.ctx, &snapshotSource{facade: d.facade, bootTime: d.bootTime}, *telemetryRate)
		}()
	}
}

// Shutdown stops every goroutine, disarms the motors before closing
// their handles, and releases the devices.
func (d *EKFD) Shutdown() {
	d.cancel()
	d.wg.Wait()

	if d.motors != nil {
		if err := d.motors.Disarm(); err != nil {
			d.log.WithError(err).Error("motor disarm failed")
		}
		if err := d.motors.Close(); err != nil {
			d.log.WithError(err).Error("motor close failed")
		}
	}
	if d.mavlink != nil {
		if err := d.mavlink.Close(); err != nil {
			d.log.WithError(err).Error("mavlink close failed")
		}
	}
	if err := d.client.Close(); err != nil {
		d.log.WithError(err).Error("sensor client close failed")
	}

	mean, variance, max := d.facade.LoopStats()
	d.log.WithFields(logrus.Fields{
		"iterations": d.facade.UpdateCount(),
		"dt_mean_s":  mean,
		"dt_var_s2":  variance,
		"dt_max_s":   max,
	}).Info("ekfd stopped")
}

// snapshotSource adapts the estimator's local-frame snapshot to the
// geodetic values GLOBAL_POSITION_INT wants, offsetting from the
// configured origin with an equirectangular approximation.
type snapshotSource struct {
	facade   *ekf.Facade
	bootTime time.Time
}

const metersPerDegLat = 111320.0

func (s *snapshotSource) Position() (lat, lon, alt, relAlt float64) {
	snap := s.facade.Snapshot()

	lat = *originLat + float64(snap.Position.Y)/metersPerDegLat
	scale := metersPerDegLat * math.Cos(*originLat*math.Pi/180)
	if scale != 0 {
		lon = *originLon + float64(snap.Position.X)/scale
	} else {
		lon = *originLon
	}
	alt = float64(snap.Position.Z)
	relAlt = float64(snap.Position.Z)
	return lat, lon, alt, relAlt
}

func (s *snapshotSource) Velocity() (vx, vy, vz float32) {
	snap := s.facade.Snapshot()
	return snap.Velocity.X, snap.Velocity.Y, snap.Velocity.Z
}

func (s *snapshotSource) HeadingDeg() float32 {
	snap := s.facade.Snapshot()
	deg := snap.Yaw * 180 / math.Pi
	for deg < 0 {
		deg += 360
	}
	return deg
}

func (s *snapshotSource) BootTime() time.Time {
	return s.bootTime
}
