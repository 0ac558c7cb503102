// Command sensor-module hosts the embedded sensor interface controller
// against a real serial device and republishes its state to Redis, the
// same flag-configured bring-up shape as the reference fleet's
// cmd/bluetooth-service.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/librescoot/sensor-module/internal/controller"
	"github.com/librescoot/sensor-module/internal/telemetry"
	serialtransport "github.com/librescoot/sensor-module/internal/transport/serial"
)

var (
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	tickHz       = flag.Int("tick-hz", 1000, "Lifecycle tick frequency in Hz")
	redisAddr    = flag.String("redis-addr", "localhost:6379", "Redis server address")
	redisPass    = flag.String("redis-pass", "", "Redis password")
	redisDB      = flag.Int("redis-db", 0, "Redis database number")
	noRedis      = flag.Bool("no-redis", false, "Disable the Redis telemetry bridge")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting sensor-module")
	log.Printf("Serial device: %s", *serialDevice)
	log.Printf("Baud rate: %d", *baudRate)
	log.Printf("Tick frequency: %d Hz", *tickHz)

	port, err := serialtransport.Open(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("Failed to open serial device: %v", err)
	}
	defer port.Close()

	ctrl := controller.New(port, port)
	port.StartReading(ctrl.FeedByte)
	log.Printf("Controller constructed, BOOT state pending first tick")

	tickInterval := time.Second / time.Duration(*tickHz)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			ctrl.Tick(port.NowMs())
		}
	}()

	var bridge *telemetry.Bridge
	if !*noRedis {
		log.Printf("Redis address: %s", *redisAddr)
		redisClient, err := telemetry.NewClient(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Printf("Warning: telemetry disabled, failed to connect to Redis: %v", err)
		} else {
			defer redisClient.Close()
			bridge = telemetry.NewBridge(redisClient, ctrl.Snapshot)
			go bridge.Run()
			log.Printf("Telemetry bridge running")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if bridge != nil {
		bridge.Stop()
	}
	log.Printf("Shutting down...")
}
