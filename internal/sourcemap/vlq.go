package sourcemap

import (
	"fmt"
	"strings"
)

const b64alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var b64reverse [128]int8

func init() {
	for i := range b64reverse {
		b64reverse[i] = -1
	}
	for i := 0; i < len(b64alphabet); i++ {
		b64reverse[b64alphabet[i]] = int8(i)
	}
}

// appendVLQ кодирует знаковое значение в base64-VLQ и дописывает его в sb.
// Младший бит первой группы — знак, дальше по 5 бит на группу с continuation
// битом 0x20.
func appendVLQ(sb *strings.Builder, value int32) {
	v := uint32(value) << 1
	if value < 0 {
		v = uint32(-value)<<1 | 1
	}
	for {
		digit := v & 0x1F
		v >>= 5
		if v != 0 {
			digit |= 0x20
		}
		sb.WriteByte(b64alphabet[digit])
		if v == 0 {
			break
		}
	}
}

// decodeVLQ reads one VLQ value starting at pos and returns the value and
// the position right after it.
func decodeVLQ(s string, pos int) (int32, int, error) {
	var result uint32
	shift := uint(0)
	for {
		if pos >= len(s) {
			return 0, pos, fmt.Errorf("sourcemap: truncated VLQ")
		}
		c := s[pos]
		if c >= 128 || b64reverse[c] < 0 {
			return 0, pos, fmt.Errorf("sourcemap: bad VLQ char %q", c)
		}
		digit := uint32(b64reverse[c])
		pos++
		result |= (digit & 0x1F) << shift
		if digit&0x20 == 0 {
			break
		}
		shift += 5
		if shift > 30 {
			return 0, pos, fmt.Errorf("sourcemap: VLQ overflow")
		}
	}
	value := int32(result >> 1)
	if result&1 != 0 {
		value = -value
	}
	return value, pos, nil
}
