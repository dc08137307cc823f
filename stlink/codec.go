// codec.go - little-endian width-typed packing for the STLink wire protocol

package stlink

// The probe always speaks little-endian on the wire, independent of host
// byte order. These helpers are the only place that assumption is encoded;
// everything else in the package calls through them.

func putUint16LE(buf []byte, v uint16) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
}

func putUint32LE(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func uint16LE(buf []byte) uint16 {
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func uint32LE(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

// unpackVersionField unpacks the STLink version reply's packed {4,6,6}-bit
// big-endian field (STLink:4, JTAG:6, SWIM:6 within one 16-bit big-endian
// half-word) per spec section 6.
func unpackVersionField(raw uint16) (stlinkVer, jtagVer, swimVer byte) {
	stlinkVer = byte((raw >> 12) & 0x0f)
	jtagVer = byte((raw >> 6) & 0x3f)
	swimVer = byte(raw & 0x3f)
	return
}

func uint16BE(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}
