package atdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Property: ParseMTFrame is a left-inverse of FormatMTFrame for random
// payloads of 0 to 512 bytes (spec §8 property 5).
func TestMTFrameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "payload")
		frame := FormatMTFrame(payload)
		got, err := ParseMTFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})
}

func TestMTFrameBadChecksum(t *testing.T) {
	frame := FormatMTFrame([]byte{1, 2, 3})
	frame[len(frame)-2] ^= 0xFF // corrupt checksum high byte
	_, err := ParseMTFrame(frame)
	assert.ErrorIs(t, err, ErrBadChecksum)
}

func TestMessageTypeOffset(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0x07, 0x01, 'x'}
	mt, ok := MessageType(payload)
	require.True(t, ok)
	assert.Equal(t, uint16(0x0701), mt)
}

func TestClassifyMTTypeSentinel(t *testing.T) {
	r := ClassifyMTType(0x0005)
	assert.True(t, r.Matched)
	assert.Equal(t, ActionPowerCycleModem, r.Sentinel)
}

func TestClassifyMTTypeModemInbox(t *testing.T) {
	r := ClassifyMTType(0x0025)
	assert.True(t, r.Matched)
	assert.Equal(t, DeviceModem, r.Device)
	assert.Equal(t, SubdirInbox, r.Subdir)
	assert.False(t, r.CopyPort3)
}

func TestClassifyMTTypeUnmatched(t *testing.T) {
	r := ClassifyMTType(0xFFFF)
	assert.False(t, r.Matched)
}
