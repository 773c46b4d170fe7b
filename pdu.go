package ll

import "fmt"

// LLID identifies a data-channel PDU payload type: RESERVED,
// DATA_CONTINUE, DATA_START, or CTRL.
type LLID uint8

const (
	LLIDReserved     LLID = 0x00
	LLIDDataContinue LLID = 0x01
	LLIDDataStart    LLID = 0x02
	LLIDControl      LLID = 0x03
)

// DataPDU is a decoded data-channel PDU: the LLID/NESN/SN/MD header bits
// plus payload. Length is carried as a single byte; Data Length
// Extension widens the practical payload size but not the header shape.
type DataPDU struct {
	LLID    LLID
	NESN    uint8
	SN      uint8
	MD      uint8
	Payload []byte
}

func (p DataPDU) headerByte0() byte {
	b := byte(p.LLID) & 0x03
	if p.NESN != 0 {
		b |= 0x04
	}
	if p.SN != 0 {
		b |= 0x08
	}
	if p.MD != 0 {
		b |= 0x10
	}
	return b
}

// Marshal encodes the PDU as it appears on air.
func (p DataPDU) Marshal() []byte {
	b := make([]byte, 2+len(p.Payload))
	b[0] = p.headerByte0()
	b[1] = byte(len(p.Payload))
	copy(b[2:], p.Payload)
	return b
}

// Unmarshal decodes a data-channel PDU from its on-air representation.
func (p *DataPDU) Unmarshal(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("ll: short data pdu header")
	}
	h := b[0]
	p.LLID = LLID(h & 0x03)
	p.NESN = (h >> 2) & 1
	p.SN = (h >> 3) & 1
	p.MD = (h >> 4) & 1
	n := int(b[1])
	if len(b) < 2+n {
		return fmt.Errorf("ll: data pdu length %d exceeds buffer of %d", n, len(b)-2)
	}
	p.Payload = append([]byte(nil), b[2:2+n]...)
	return nil
}

// emptyPDU is the zero-payload keepalive PDU sent when there is nothing to
// fragment and nothing new to dequeue.
func emptyPDU(nesn, sn uint8) DataPDU {
	return DataPDU{LLID: LLIDDataStart, NESN: nesn, SN: sn, MD: 0, Payload: nil}
}
