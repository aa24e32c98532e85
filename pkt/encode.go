package pkt

import (
	"encoding/binary"
	"unsafe"
)

func putUint64LE(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func putUint32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

func ptrOf(p *Packet) unsafe.Pointer { return unsafe.Pointer(p) }
