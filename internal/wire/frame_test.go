package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, byte(KSendCommand), 7))

	h, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, Header{Kind: byte(KSendCommand), Length: 7}, h)
}

func TestValidateClientFrame_RejectsUnknownKind(t *testing.T) {
	_, err := ValidateClientFrame(Header{Kind: 255, Length: 0})
	assert.Error(t, err)
}

func TestValidateClientFrame_RejectsOversizedPayload(t *testing.T) {
	_, err := ValidateClientFrame(Header{Kind: byte(KPing), Length: MaxServerBoundPayload + 1})
	assert.Error(t, err)
}

func TestValidateClientFrame_EnforcesExactSize(t *testing.T) {
	_, err := ValidateClientFrame(Header{Kind: byte(KSendCommand), Length: commandWireSize})
	assert.NoError(t, err)

	_, err = ValidateClientFrame(Header{Kind: byte(KSendCommand), Length: commandWireSize - 1})
	assert.Error(t, err)
}

func TestValidateClientFrame_EnforcesMinSize(t *testing.T) {
	_, err := ValidateClientFrame(Header{Kind: byte(KLoginRequest), Length: 0})
	assert.Error(t, err)

	_, err = ValidateClientFrame(Header{Kind: byte(KLoginRequest), Length: 1})
	assert.NoError(t, err)
}

func TestValidateServerFrame_AppliesMatchReplayCarveOut(t *testing.T) {
	_, err := ValidateServerFrame(Header{Kind: byte(SMatchReplay), Length: MaxClientBoundPayload + 1})
	assert.NoError(t, err)

	_, err = ValidateServerFrame(Header{Kind: byte(SMatchReplay), Length: MaxMatchReplayPayload + 1})
	assert.Error(t, err)
}

func TestValidateServerFrame_RejectsUnknownKind(t *testing.T) {
	_, err := ValidateServerFrame(Header{Kind: 255, Length: 0})
	assert.Error(t, err)
}

func TestReadClientFrame_ReadsPayload(t *testing.T) {
	var buf bytes.Buffer
	cmd := EncodeCommand(Command{Sender: 1, Kind: CmdFire, TankID: 2, Seq: 9})
	require.NoError(t, WriteHeader(&buf, byte(KSendCommand), uint32(len(cmd))))
	buf.Write(cmd)

	kind, payload, err := ReadClientFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KSendCommand, kind)
	assert.Equal(t, cmd, payload)
}

func TestWriteServerFrame_RejectsBadSize(t *testing.T) {
	var buf bytes.Buffer
	err := WriteServerFrame(&buf, SBadAuth, []byte{})
	assert.Error(t, err)
}

func TestWriteServerFrame_WritesValidFrame(t *testing.T) {
	var buf bytes.Buffer
	err := WriteServerFrame(&buf, SBadAuth, []byte{byte(AuthReasonBanned)})
	require.NoError(t, err)

	h, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(SBadAuth), h.Kind)
	assert.Equal(t, uint32(1), h.Length)
}
