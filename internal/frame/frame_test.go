package frame

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"grimm.is/ifctl/internal/errors"
)

var (
	src = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	dst = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02}
)

func TestBuildParse(t *testing.T) {
	b, err := Build(Frame{Dst: dst, Src: src, EtherType: EtherTypeExperimental, Payload: []byte("hello")})
	require.NoError(t, err)
	assert.Len(t, b, MinSize)
	assert.Equal(t, []byte(dst), b[0:6])
	assert.Equal(t, []byte(src), b[6:12])
	assert.Equal(t, []byte{0x88, 0xb5}, b[12:14])

	f, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, EtherTypeExperimental, f.EtherType)
	assert.Equal(t, uint16(0), f.VLAN)
	assert.Equal(t, []byte("hello"), f.Payload[:5])
}

func TestBuildTagged(t *testing.T) {
	b, err := Build(Frame{Dst: Broadcast, Src: src, EtherType: EtherTypeExperimental, VLAN: 100, Priority: 5, Payload: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x00}, b[12:14])

	f, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), f.VLAN)
	assert.Equal(t, uint8(5), f.Priority)
	assert.Equal(t, EtherTypeExperimental, f.EtherType)
	assert.Equal(t, []byte{1, 2, 3}, f.Payload[:3])

	assert.Contains(t, Describe(b), "vlan 100")
	assert.Contains(t, Describe(b), "02:00:00:00:00:01 > ff:ff:ff:ff:ff:ff")
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(Frame{Dst: dst[:4], Src: src})
	assert.Equal(t, errors.KindEncoding, errors.GetKind(err))

	_, err = Build(Frame{Dst: dst, Src: src, VLAN: 4095})
	assert.Equal(t, errors.KindEncoding, errors.GetKind(err))
}

func TestParseShort(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	assert.Equal(t, errors.KindDecoding, errors.GetKind(err))
	assert.Contains(t, Describe([]byte{1, 2, 3}), "undecodable")
}

func TestFilter(t *testing.T) {
	raw, err := Filter(EtherTypeExperimental)
	require.NoError(t, err)

	var prog []bpf.Instruction
	for _, r := range raw {
		prog = append(prog, r.Disassemble())
	}
	vm, err := bpf.NewVM(prog)
	require.NoError(t, err)

	plain, _ := Build(Frame{Dst: dst, Src: src, EtherType: EtherTypeExperimental})
	tagged, _ := Build(Frame{Dst: dst, Src: src, EtherType: EtherTypeExperimental, VLAN: 7})
	other, _ := Build(Frame{Dst: dst, Src: src, EtherType: EtherTypeIPv4})
	otherTagged, _ := Build(Frame{Dst: dst, Src: src, EtherType: EtherTypeARP, VLAN: 7})

	for name, tc := range map[string]struct {
		frame  []byte
		accept bool
	}{
		"plain":        {plain, true},
		"tagged":       {tagged, true},
		"other":        {other, false},
		"other tagged": {otherTagged, false},
	} {
		t.Run(name, func(t *testing.T) {
			n, err := vm.Run(tc.frame)
			require.NoError(t, err)
			assert.Equal(t, tc.accept, n > 0)
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeReader hands out queued frames, then times out.
type fakeReader struct {
	frames      [][]byte
	deadlineErr error
	deadlines   int
}

func (r *fakeReader) SetReadDeadline(time.Time) error {
	r.deadlines++
	return r.deadlineErr
}

func (r *fakeReader) ReadFrom(b []byte) (int, net.Addr, error) {
	if len(r.frames) == 0 {
		return 0, nil, timeoutError{}
	}
	n := copy(b, r.frames[0])
	r.frames = r.frames[1:]
	return n, nil, nil
}

func TestReadFrames(t *testing.T) {
	plain, _ := Build(Frame{Dst: dst, Src: src, EtherType: EtherTypeExperimental})
	r := &fakeReader{frames: [][]byte{plain, plain, plain}}

	var got int
	err := readFrames(context.Background(), r, "eth0", 1518, time.Time{}, func(f []byte) bool {
		assert.Equal(t, plain, f)
		got++
		return got < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Len(t, r.frames, 1)
}

func TestReadFramesDeadlineError(t *testing.T) {
	r := &fakeReader{deadlineErr: syscall.EBADF}
	err := readFrames(context.Background(), r, "eth0", 1518, time.Time{}, func([]byte) bool {
		t.Fatal("no frame should be read without a deadline")
		return false
	})
	assert.Equal(t, errors.KindChannel, errors.GetKind(err))
	assert.ErrorIs(t, err, syscall.EBADF)
	assert.Equal(t, 1, r.deadlines)
}

func TestReadFramesStops(t *testing.T) {
	t.Run("deadline passed", func(t *testing.T) {
		r := &fakeReader{}
		err := readFrames(context.Background(), r, "eth0", 1518, time.Now().Add(-time.Second), func([]byte) bool { return true })
		require.NoError(t, err)
		assert.Zero(t, r.deadlines)
	})
	t.Run("context done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := readFrames(ctx, &fakeReader{}, "eth0", 1518, time.Time{}, func([]byte) bool { return true })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
