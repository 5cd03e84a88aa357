package health

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func infoResponse(req []byte, hostname, gamemode, language string, players, maxPlayers uint16) []byte {
	out := append([]byte{}, req[:headerSize]...)
	out = append(out, 0)
	out = binary.LittleEndian.AppendUint16(out, players)
	out = binary.LittleEndian.AppendUint16(out, maxPlayers)
	for _, s := range []string{hostname, gamemode, language} {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out
}

// fakeServer answers every info query until the test ends
func fakeServer(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if n != headerSize || string(buf[:4]) != "SAMP" || buf[10] != 'i' {
				continue
			}
			conn.WriteToUDP(infoResponse(buf[:n], "Watchdogs Test", "bare", "English", 3, 50), from)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	pkt := BuildQuery(net.IPv4(127, 0, 0, 1), 7777, 'i')
	require.Equal(t, []byte{'S', 'A', 'M', 'P', 127, 0, 0, 1, 0x61, 0x1e, 'i'}, pkt)
}

func TestCheckQueriesServer(t *testing.T) {
	t.Parallel()

	port := fakeServer(t)
	hc := NewChecker(2*time.Second).Check("127.0.0.1", port)
	require.Equal(t, HealthOK, hc.Status, hc.Message)
	require.NotNil(t, hc.Info)
	require.Equal(t, "Watchdogs Test", hc.Info.Hostname)
	require.Equal(t, "bare", hc.Info.Gamemode)
	require.Equal(t, 3, hc.Info.Players)
	require.Equal(t, 50, hc.Info.MaxPlayers)
}

func TestCheckNoServer(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	defer conn.Close()

	// bound but silent
	hc := NewChecker(100*time.Millisecond).Check("127.0.0.1", port)
	require.Equal(t, HealthTimeout, hc.Status)
	require.Nil(t, hc.Info)
}

func TestParseInfoShortPacket(t *testing.T) {
	t.Parallel()

	req := BuildQuery(net.IPv4(127, 0, 0, 1), 7777, 'i')
	full := infoResponse(req, "host", "gm", "en", 1, 2)
	_, err := ParseInfo(full[:len(full)-1])
	require.ErrorIs(t, err, errShortPacket)

	_, err = ParseInfo([]byte("nope"))
	require.Error(t, err)
}

func TestCategorizeResponse(t *testing.T) {
	t.Parallel()

	require.Equal(t, HealthOK, categorizeResponse(10))
	require.Equal(t, HealthSlow, categorizeResponse(2500))
	require.Equal(t, HealthTimeout, categorizeResponse(6000))
	require.Equal(t, "❌", StatusIcon(HealthDown))
}
