package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind_AcceptsKnownKinds(t *testing.T) {
	tcp, err := ParseKind("tcp")
	require.NoError(t, err)
	assert.Equal(t, KindTCP, tcp)

	ws, err := ParseKind("websocket")
	require.NoError(t, err)
	assert.Equal(t, KindWebSocket, ws)
}

func TestParseKind_RejectsUnknownKind(t *testing.T) {
	_, err := ParseKind("carrier-pigeon")
	assert.Error(t, err)
}
