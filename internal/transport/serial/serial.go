// Package serial provides the concrete ByteSink and Clock backing the
// controller when it is hosted against a real TTY, plus a push-based
// receive loop that feeds bytes one at a time into the caller's state
// machine, in the same spirit as the reference fleet's USOCK connection:
// it opens the device, configures baud and framing, and runs a read loop
// that dispatches each received byte to a callback rather than waiting for
// the caller to poll.
package serial

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Port wraps a real serial device: it pushes received bytes to a callback
// via StartReading and implements the controller's blocking-emit ByteSink
// and Clock.
type Port struct {
	port  serial.Port
	start time.Time

	mu     sync.Mutex
	wg     sync.WaitGroup
	stopCh chan struct{}
	onByte func(byte)
}

// Open configures and opens devicePath at baudRate, 8N1, matching the
// framing the reference fleet's USOCK connection uses. The read loop does
// not start until StartReading is called, so the caller can finish wiring
// its controller before any byte can reach it.
func Open(devicePath string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", devicePath, err)
	}
	// A short read timeout makes Read return promptly with zero bytes
	// instead of blocking forever, so the read loop can observe Close.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: set read timeout: %w", err)
	}

	return &Port{
		port:   port,
		start:  time.Now(),
		stopCh: make(chan struct{}),
	}, nil
}

// StartReading launches the read loop, which calls onByte once per received
// byte; it must not block for long, since the tick must not be starved
// indefinitely (spec.md §5).
func (p *Port) StartReading(onByte func(byte)) {
	p.onByte = onByte
	p.wg.Add(1)
	go p.readLoop()
}

// WriteByte is the blocking polled emit the frame encoder expects.
func (p *Port) WriteByte(b byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.port.Write([]byte{b})
	return err
}

// NowMs implements controller.Clock as the milliseconds elapsed since Open,
// measured on Go's monotonic clock, so deltas stay well-ordered even across
// a system clock adjustment.
func (p *Port) NowMs() uint64 {
	return uint64(time.Since(p.start).Milliseconds())
}

// Close stops the read loop and closes the underlying device.
func (p *Port) Close() error {
	close(p.stopCh)
	p.wg.Wait()
	return p.port.Close()
}

func (p *Port) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 64)
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		n, err := p.port.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("serial: read error: %v", err)
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}
		for i := 0; i < n; i++ {
			p.onByte(buf[i])
		}
	}
}
