package visa

import (
	"encoding/binary"
	"fmt"
)

// USBTMC bulk message ids
const (
	MsgDevDepMsgOut        = 0x01
	MsgRequestDevDepMsgIn  = 0x02
	MsgDevDepMsgIn         = 0x02
	MsgVendorSpecificOut   = 0x7E
	MsgRequestVendorSpecIn = 0x7F
)

const (
	// USBTMCHeaderSize is the length of every bulk header.
	USBTMCHeaderSize = 12

	attrEOM = 0x01
)

// USBTMCProtocol encodes and decodes USBTMC bulk transfers. It tracks the
// bTag sequence so replies can be matched to their request.
type USBTMCProtocol struct {
	tag     byte
	lastTag byte
}

// NewUSBTMCProtocol creates a protocol handler whose first bTag is 1.
func NewUSBTMCProtocol() *USBTMCProtocol {
	return &USBTMCProtocol{}
}

func (p *USBTMCProtocol) nextTag() byte {
	p.tag++
	if p.tag == 0 {
		p.tag = 1
	}
	p.lastTag = p.tag
	return p.tag
}

func (p *USBTMCProtocol) header(msgID byte, size uint32, attrs byte) []byte {
	tag := p.nextTag()
	h := make([]byte, USBTMCHeaderSize)
	h[0] = msgID
	h[1] = tag
	h[2] = ^tag
	binary.LittleEndian.PutUint32(h[4:8], size)
	h[8] = attrs
	return h
}

// EncodeDevDepMsgOut builds a complete command transfer carrying payload,
// padded to a four byte boundary.
func (p *USBTMCProtocol) EncodeDevDepMsgOut(payload []byte) []byte {
	h := p.header(MsgDevDepMsgOut, uint32(len(payload)), attrEOM)
	out := append(h, payload...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

// EncodeRequestDevDepMsgIn asks the device for up to maxSize reply bytes.
func (p *USBTMCProtocol) EncodeRequestDevDepMsgIn(maxSize uint32) []byte {
	return p.header(MsgRequestDevDepMsgIn, maxSize, 0)
}

// DecodeDevDepMsgIn extracts the payload of a reply transfer and reports
// whether it ended the message.
func (p *USBTMCProtocol) DecodeDevDepMsgIn(resp []byte) (payload []byte, eom bool, err error) {
	if len(resp) < USBTMCHeaderSize {
		return nil, false, fmt.Errorf("usbtmc: response too short (%d bytes)", len(resp))
	}
	if resp[0] != MsgDevDepMsgIn {
		return nil, false, fmt.Errorf("usbtmc: invalid message id 0x%02X", resp[0])
	}
	if resp[2] != ^resp[1] {
		return nil, false, fmt.Errorf("usbtmc: corrupt bTag 0x%02X/0x%02X", resp[1], resp[2])
	}
	if resp[1] != p.lastTag {
		return nil, false, fmt.Errorf("usbtmc: bTag 0x%02X does not match request 0x%02X", resp[1], p.lastTag)
	}

	size := int(binary.LittleEndian.Uint32(resp[4:8]))
	body := resp[USBTMCHeaderSize:]
	if size > len(body) {
		return nil, false, fmt.Errorf("usbtmc: incomplete transfer, %d of %d bytes", len(body), size)
	}
	return body[:size], resp[8]&attrEOM != 0, nil
}
