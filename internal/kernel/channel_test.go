package kernel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
)

func TestChannelIssue(t *testing.T) {
	mt := new(MockTransport)
	mt.On("Socket").Return(7, nil).Once()
	mt.On("Ioctl", 7, uint(ifreq.SIOCGIFFLAGS), mock.Anything).
		Run(func(args mock.Arguments) {
			buf := args.Get(2).([]byte)
			buf[ifreq.NameSize] = ifreq.IFF_UP
		}).
		Return(nil).Once()

	ch, err := OpenWith(mt, NewSim())
	require.NoError(t, err)

	req, _ := ifreq.Encode("eth0", ifreq.Empty())
	out, err := ch.Issue(ifreq.SIOCGIFFLAGS, req)
	require.NoError(t, err)

	p, err := ifreq.Decode(out, ifreq.PayloadFlags)
	require.NoError(t, err)
	assert.Equal(t, uint16(ifreq.IFF_UP), p.Flags)
	mt.AssertExpectations(t)
}

func TestChannelErrno(t *testing.T) {
	mt := new(MockTransport)
	mt.On("Socket").Return(3, nil)
	mt.On("Ioctl", 3, uint(ifreq.SIOCGIFINDEX), mock.Anything).Return(unix.ENODEV)

	ch, err := OpenWith(mt, NewSim())
	require.NoError(t, err)

	req, _ := ifreq.Encode("nope0", ifreq.Empty())
	_, err = ch.Issue(ifreq.SIOCGIFINDEX, req)
	require.Error(t, err)
	assert.Equal(t, errors.KindChannel, errors.GetKind(err))
	assert.True(t, errors.HasErrno(err, unix.ENODEV))
	assert.Equal(t, int(unix.ENODEV), errors.GetAttributes(err)["errno"])
	assert.Contains(t, err.Error(), "SIOCGIFINDEX")
}

func TestChannelOpenFailure(t *testing.T) {
	mt := new(MockTransport)
	mt.On("Socket").Return(-1, unix.EMFILE)

	_, err := OpenWith(mt, NewSim())
	require.Error(t, err)
	assert.Equal(t, errors.KindChannel, errors.GetKind(err))
	assert.True(t, errors.HasErrno(err, unix.EMFILE))
}

func TestChannelClose(t *testing.T) {
	mt := new(MockTransport)
	mt.On("Socket").Return(4, nil)
	mt.On("Close", 4).Return(nil).Once()

	ch, err := OpenWith(mt, NewSim())
	require.NoError(t, err)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close(), "second close is a no-op")

	req, _ := ifreq.Encode("eth0", ifreq.Empty())
	_, err = ch.Issue(ifreq.SIOCGIFFLAGS, req)
	assert.Equal(t, errors.KindChannelClosed, errors.GetKind(err))

	_, err = ch.IssueRef(ifreq.SIOCETHTOOL, req, ifreq.DataOffset, make([]byte, ifreq.ValueSize))
	assert.Equal(t, errors.KindChannelClosed, errors.GetKind(err))

	assert.Equal(t, errors.KindChannelClosed, errors.GetKind(ch.Check()))
	_, err = ch.Ethtool()
	assert.Equal(t, errors.KindChannelClosed, errors.GetKind(err))

	mt.AssertExpectations(t)
	mt.AssertNotCalled(t, "Ioctl", mock.Anything, mock.Anything, mock.Anything)
}

func TestChannelEthtoolUnsupported(t *testing.T) {
	mt := new(MockTransport)
	mt.On("Socket").Return(5, nil)

	ch, err := OpenWith(mt, NewSim())
	require.NoError(t, err)
	_, err = ch.Ethtool()
	assert.Equal(t, errors.KindUnsupported, errors.GetKind(err))
}

func TestChannelLock(t *testing.T) {
	ch, err := OpenWith(NewSim(), NewSim())
	require.NoError(t, err)
	defer ch.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := ch.Lock("eth0")
			defer unlock()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Different devices do not share a lock.
	unlockA := ch.Lock("a")
	unlockB := ch.Lock("b")
	unlockB()
	unlockA()
}

func TestRequestName(t *testing.T) {
	assert.Equal(t, "SIOCBRADDBR", RequestName(ifreq.SIOCBRADDBR))
	assert.Equal(t, "ioctl(0x1234)", RequestName(0x1234))
}

func TestChannelEthtoolRacesClose(t *testing.T) {
	sim := NewSim()
	ch, err := OpenWith(sim, sim)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eth, err := ch.Ethtool()
			if err != nil {
				assert.Equal(t, errors.KindChannelClosed, errors.GetKind(err))
				return
			}
			assert.NotNil(t, eth)
		}()
	}
	require.NoError(t, ch.Close())
	wg.Wait()

	_, err = ch.Ethtool()
	assert.Equal(t, errors.KindChannelClosed, errors.GetKind(err))
}
