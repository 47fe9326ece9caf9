package ifreq

import (
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/errors"
)

var macPattern = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)

func TestFDBEntries(t *testing.T) {
	var buf []byte
	const n = 5
	for i := 0; i < n; i++ {
		e := FDBEntry{
			MAC:         net.HardwareAddr{0x02, 0, 0, 0, 0, byte(i)},
			Port:        uint16(i + 1),
			Local:       i == 0,
			AgeingTimer: uint32(i * 150),
		}
		b, err := e.MarshalBinary()
		require.NoError(t, err)
		buf = append(buf, b...)
	}

	var got []FDBEntry
	for e, err := range FDBEntries(buf) {
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, n)
	for i, e := range got {
		assert.Regexp(t, macPattern, e.MAC.String())
		assert.Equal(t, uint16(i+1), e.Port)
		assert.Equal(t, i == 0, e.Local)
	}
	assert.Equal(t, 3*time.Second, got[2].Age())
}

func TestFDBHighPort(t *testing.T) {
	row := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x02, 0x00, 0, 0, 0, 0, 0x01, 0, 0, 0}
	e, err := DecodeFDB(row)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), e.Port)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", e.MAC.String())
}

func TestFDBPartialRow(t *testing.T) {
	buf := make([]byte, FDBEntrySize+5)
	var errs int
	var rows int
	for _, err := range FDBEntries(buf) {
		if err != nil {
			errs++
			assert.Equal(t, errors.KindDecoding, errors.GetKind(err))
			continue
		}
		rows++
	}
	assert.Equal(t, 1, rows)
	assert.Equal(t, 1, errs)
}

func TestFDBEmpty(t *testing.T) {
	for range FDBEntries(nil) {
		t.Fatal("empty table yielded a row")
	}
}
