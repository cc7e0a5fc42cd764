package eventlog

import (
	"encoding/binary"
	"time"
)

// snapshotHeaderLen is (message type, length, request time): 1 + 2 + 4 bytes
// (spec §4.4 "a header (message type, length, request time)").
const snapshotHeaderLen = 1 + 2 + 4

const crcLen = 2

// GenerateSnapshot builds the binary snapshot message of spec §4.4
// ("generate_log_message(requested_time)"): a header of (message type,
// length, request time), a 16-bit CRC, then the last-N deduplicated ring
// entries. The CRC is computed over every byte that follows it — the entry
// body — so a receiver can validate the payload without first knowing the
// header's own checksum status.
func GenerateSnapshot(msgType byte, requestedTime time.Time, entries []Entry) []byte {
	body := encodeEntries(entries)
	total := snapshotHeaderLen + crcLen + len(body)

	out := make([]byte, 0, total)
	out = append(out, msgType)
	out = binary.BigEndian.AppendUint16(out, uint16(total))
	out = binary.BigEndian.AppendUint32(out, uint32(requestedTime.Unix()))
	out = binary.BigEndian.AppendUint16(out, crc16CCITT(body))
	out = append(out, body...)
	return out
}

// encodeEntries packages each ring entry as (timestamp uint32, kind-length
// byte, kind bytes, repeat-count byte), truncating an oversized kind string
// or count rather than failing the snapshot.
func encodeEntries(entries []Entry) []byte {
	var body []byte
	for _, e := range entries {
		kind := e.Kind
		if len(kind) > 255 {
			kind = kind[:255]
		}
		body = binary.BigEndian.AppendUint32(body, uint32(e.Timestamp.Unix()))
		body = append(body, byte(len(kind)))
		body = append(body, kind...)
		count := e.Count
		if count > 255 {
			count = 255
		}
		body = append(body, byte(count))
	}
	return body
}

// crc16CCITT computes the CRC-16/CCITT-FALSE checksum (polynomial 0x1021,
// initial value 0xFFFF). No module in the dependency set provides a CRC-16
// implementation, so this is hand-rolled arithmetic (see DESIGN.md).
func crc16CCITT(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
