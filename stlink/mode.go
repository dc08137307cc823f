// mode.go - DFU recovery and debug-mode entry

package stlink

import (
	"fmt"
	"time"
)

const (
	modeRecoveryAttempts = 10
	modeRecoveryInterval = 1 * time.Second
)

// sleepFunc is swapped out in tests so the recovery loop does not actually
// block for modeRecoveryAttempts seconds.
var sleepFunc = time.Sleep

// enterUsableMode drives the probe into debug mode, following the recovery
// schedule the original tool's stl_kick_mode() uses when a probe is left
// in DFU or an unrecognised mode from a prior run: check the current
// mode, and if it is neither Debug nor Mass, request a DFU exit, close
// the transport, then retry opening a fresh handle up to
// modeRecoveryAttempts times at modeRecoveryInterval apart, entering SWD
// and checking core status after each successful reopen, before giving up
// with a ModeError.
//
// A DFU exit makes the probe re-enumerate on the USB bus, so the
// transport in use when this is called must support Reopen — reusing the
// same handle across attempts would never observe the new device.
func (s *Session) enterUsableMode() error {
	mode, err := s.proto.getCurrentMode()
	if err != nil {
		return err
	}

	if mode == ModeDebug || mode == ModeMass {
		return s.proto.enterSWD()
	}

	reopener, ok := s.proto.t.(Reopener)
	if !ok {
		return &ModeError{Err: fmt.Errorf("transport does not support close/reopen recovery")}
	}

	if err := s.proto.exitDFU(); err != nil {
		s.warnf("stlink: exit-DFU request failed (continuing): %v", err)
	}
	if err := s.proto.t.Close(); err != nil {
		s.warnf("stlink: closing transport before reopen (continuing): %v", err)
	}

	var lastErr error
	for attempt := 1; attempt <= modeRecoveryAttempts; attempt++ {
		sleepFunc(modeRecoveryInterval)

		t, err := reopener.Reopen()
		if err != nil {
			lastErr = err
			continue
		}
		s.proto = newProtocol(t)
		reopener, ok = t.(Reopener)
		if !ok {
			return &ModeError{Attempts: attempt, Err: fmt.Errorf("reopened transport does not support close/reopen recovery")}
		}

		if err := s.proto.enterSWD(); err != nil {
			lastErr = err
			continue
		}

		status, err := s.proto.getStatus()
		if err != nil {
			lastErr = err
			continue
		}
		if status != CoreUnknown {
			return nil
		}
		lastErr = fmt.Errorf("probe reported an unrecognised status after reopen")
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("probe never reported a recognised status")
	}
	return &ModeError{Attempts: modeRecoveryAttempts, Err: lastErr}
}
