// transport.go - duplex byte channel to the probe over a USB bulk endpoint pair

package stlink

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gousb"
)

const (
	vendorID  = 0x0483
	productV1 = 0x3744
	productV2 = 0x3748

	usbConfiguration = 1
	usbEndpointOut   = 0x02
	usbEndpointIn    = 0x81

	transferTimeout = 800 * time.Millisecond
)

// Transport is the byte-level duplex channel the probe protocol layer
// speaks over. It knows nothing about command semantics: callers decide
// what bytes mean; the transport only moves them, one command phase
// followed by at most one data phase, per spec section 4.1.
type Transport interface {
	SendCommand(cmd []byte) error
	SendData(buf []byte) (int, error)
	RecvData(buf []byte) (int, error)
	Close() error
}

// Reopener is implemented by transports that can be closed and reopened
// against the same physical probe. The DFU-recovery schedule in mode.go
// relies on this: exiting DFU mode makes the device re-enumerate on the
// USB bus, so the old handle is never usable again and a fresh one must
// be opened after a short wait.
type Reopener interface {
	Reopen() (Transport, error)
}

// usbTransport is the real gousb-backed implementation.
type usbTransport struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	cfg     *gousb.Config
	iface   *gousb.Interface
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	logger  *log.Logger
}

// OpenUSB scans for an STLink v2 probe (VID 0x0483, PID 0x3744 or 0x3748)
// and opens its bulk endpoint pair. Only one probe may be attached; the
// first match is used.
func OpenUSB(logger *log.Logger) (Transport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productV2))
	if err != nil || dev == nil {
		dev, err = ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productV1))
	}
	if err != nil {
		ctx.Close()
		return nil, &TransportError{Op: "open", Err: err}
	}
	if dev == nil {
		ctx.Close()
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("no STLink v2 probe found (VID %#04x)", vendorID)}
	}

	if err := dev.SetAutoDetach(true); err != nil {
		logger.Printf("stlink: SetAutoDetach failed (continuing): %v", err)
	}

	cfg, err := dev.Config(usbConfiguration)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, &TransportError{Op: "claim config", Err: err}
	}
	iface, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransportError{Op: "claim interface", Err: err}
	}
	out, err := iface.OutEndpoint(usbEndpointOut & 0x0f)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransportError{Op: "open out endpoint", Err: err}
	}
	in, err := iface.InEndpoint(usbEndpointIn & 0x0f)
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransportError{Op: "open in endpoint", Err: err}
	}

	return &usbTransport{ctx: ctx, dev: dev, cfg: cfg, iface: iface, out: out, in: in, logger: logger}, nil
}

func (t *usbTransport) SendCommand(cmd []byte) error {
	n, err := t.write(cmd)
	if err != nil {
		return &TransportError{Op: "send command", Wanted: len(cmd), Got: n, Err: err}
	}
	if n != len(cmd) {
		return &TransportError{Op: "send command", Wanted: len(cmd), Got: n}
	}
	return nil
}

func (t *usbTransport) SendData(buf []byte) (int, error) {
	n, err := t.write(buf)
	if err != nil {
		return n, &TransportError{Op: "send data", Wanted: len(buf), Got: n, Err: err}
	}
	return n, nil
}

func (t *usbTransport) RecvData(buf []byte) (int, error) {
	opCtx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()

	n, err := t.in.ReadContext(opCtx, buf)
	if err != nil {
		return n, &TransportError{Op: "recv data", Wanted: len(buf), Got: n, Err: err}
	}
	return n, nil
}

func (t *usbTransport) write(buf []byte) (int, error) {
	opCtx, cancel := context.WithTimeout(context.Background(), transferTimeout)
	defer cancel()
	return t.out.WriteContext(opCtx, buf)
}

func (t *usbTransport) Close() error {
	t.iface.Close()
	t.cfg.Close()
	err := t.dev.Close()
	t.ctx.Close()
	return err
}

// Reopen re-scans the bus for an STLink v2 probe, the same way OpenUSB
// does on first open. The probe is expected to have already re-enumerated
// by the time this is called.
func (t *usbTransport) Reopen() (Transport, error) {
	return OpenUSB(t.logger)
}
