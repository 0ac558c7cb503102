// Command sensor-module-ctl is a small host-side diagnostics tool: it
// opens the same serial device the module binary uses, frames a single
// request by hand, and prints the decoded reply. Useful for manual
// bring-up without a full supervisor, the way the reference fleet's
// cmd/bluetooth-service is paired with ad hoc USOCK probing during
// bring-up.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/librescoot/sensor-module/internal/frame"
	serialtransport "github.com/librescoot/sensor-module/internal/transport/serial"
)

var (
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	baudRate     = flag.Int("baud", 115200, "Serial baud rate")
	request      = flag.String("request", "get-status", "One of: get-status, get-param, set-param, reset")
	paramID      = flag.Int("param", 0, "Parameter ID for get-param/set-param")
	value        = flag.Int("value", 0, "Value for set-param")
	timeout      = flag.Duration("timeout", 500*time.Millisecond, "Reply wait timeout")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	payload, typ, err := buildRequest(*request, byte(*paramID), uint16(*value))
	if err != nil {
		log.Fatalf("Bad request: %v", err)
	}

	port, err := serialtransport.Open(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("Failed to open serial device: %v", err)
	}
	defer port.Close()

	replyCh := make(chan frame.Frame, 1)
	parser := frame.NewParser(func(f frame.Frame) {
		select {
		case replyCh <- f:
		default:
		}
	})
	port.StartReading(parser.FeedByte)

	enc := frame.NewEncoder(port)
	if err := enc.Emit(typ, payload); err != nil {
		log.Fatalf("Failed to emit request: %v", err)
	}

	if typ == frame.TypeResetMod {
		log.Printf("Sent RESET_MOD; no reply expected")
		return
	}

	select {
	case f := <-replyCh:
		fmt.Printf("reply type=0x%02X payload=% X\n", f.Type, f.Payload)
	case <-time.After(*timeout):
		log.Fatalf("Timed out waiting for reply")
	}
}

func buildRequest(kind string, param byte, val uint16) ([]byte, uint8, error) {
	switch kind {
	case "get-status":
		return nil, frame.TypeGetStatus, nil
	case "reset":
		return nil, frame.TypeResetMod, nil
	case "get-param":
		return []byte{param}, frame.TypeGetParam, nil
	case "set-param":
		switch param {
		case 0x01, 0x02:
			return []byte{param, byte(val >> 8), byte(val)}, frame.TypeSetParam, nil
		case 0x03:
			v := byte(0)
			if val != 0 {
				v = 1
			}
			return []byte{param, v}, frame.TypeSetParam, nil
		default:
			return nil, 0, fmt.Errorf("unknown param id 0x%02X", param)
		}
	default:
		return nil, 0, fmt.Errorf("unknown request kind %q", kind)
	}
}

