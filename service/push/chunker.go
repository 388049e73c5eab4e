package push

import "github.com/google/uuid"

// MaxPayloadSize caps the data carried by one push message. Larger payloads
// are split into parts the client reassembles by (messageId, partNumber).
const MaxPayloadSize = 4096

// Part is one slice of a (possibly split) push payload.
type Part struct {
	MessageID  string
	PartNumber int // 1-based
	TotalParts int
	Data       string
}

// SplitPayload slices the payload into parts of at most MaxPayloadSize bytes.
// A payload that fits is a single part. Messages pushed without their own id
// (the "-1" sentinel) get a generated one so parts still correlate.
//
// Part data rides inside a JSON string on the wire, so a cut must never land
// mid-rune: encoding a half sequence would mangle it into U+FFFD and the
// client could no longer reassemble the payload byte for byte. The boundary
// backs up to the nearest UTF-8 start byte (at most 3 bytes).
func SplitPayload(payload []byte, messageID string) []Part {
	if messageID == "" || messageID == "-1" {
		messageID = uuid.NewString()
	}
	var parts []Part
	for start := 0; ; {
		end := start + MaxPayloadSize
		if end >= len(payload) {
			parts = append(parts, Part{Data: string(payload[start:])})
			break
		}
		cut := end
		for cut > start && payload[cut]&0xC0 == 0x80 {
			cut--
		}
		if cut == start {
			// not UTF-8 at all; split raw rather than stall
			cut = end
		}
		parts = append(parts, Part{Data: string(payload[start:cut])})
		start = cut
	}
	for i := range parts {
		parts[i].MessageID = messageID
		parts[i].PartNumber = i + 1
		parts[i].TotalParts = len(parts)
	}
	return parts
}
