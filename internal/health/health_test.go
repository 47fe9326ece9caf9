package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/clock"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/testutil"
)

func addPort(t *testing.T, sim *kernel.Sim, name string, up, carrier bool) {
	t.Helper()
	require.NoError(t, sim.AddLink(kernel.SimLink{
		Name:     name,
		Physical: true,
		Up:       up,
		Carrier:  carrier,
		MAC:      net.HardwareAddr{0x52, 0x54, 0x00, 0x00, 0x00, byte(len(name))},
	}))
}

func TestDeviceChecker(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addPort(t, sim, "eth0", true, true)
	addPort(t, sim, "eth1", true, false)
	addPort(t, sim, "eth2", false, true)

	c := NewDeviceChecker(ch, []string{"eth0", "eth1", "eth2", "eth9"})
	assert.Equal(t, []string{"channel", "interfaces", "link:eth0", "link:eth1", "link:eth2", "link:eth9"}, c.Names())

	report := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)

	tests := []struct {
		name    string
		status  Status
		message string
	}{
		{"channel", StatusHealthy, "control socket open"},
		{"interfaces", StatusHealthy, "4 interfaces, 3 physical"},
		{"link:eth0", StatusHealthy, "eth0 up"},
		{"link:eth1", StatusDegraded, "eth1 has no carrier"},
		{"link:eth2", StatusUnhealthy, "eth2 is down"},
		{"link:eth9", StatusUnhealthy, "eth9 not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, ok := report.Checks[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.name, check.Name)
			assert.Equal(t, tt.status, check.Status)
			assert.Equal(t, tt.message, check.Message)
		})
	}
}

func TestDegradedWithoutPhysicalDevices(t *testing.T) {
	_, ch := testutil.SimChannel(t)

	report := NewDeviceChecker(ch, nil).Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "1 interfaces, none physical", report.Checks["interfaces"].Message)
}

func TestClosedChannel(t *testing.T) {
	_, ch := testutil.SimChannel(t)
	require.NoError(t, ch.Close())

	check := ChannelCheck(ch)(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
}

func TestReportCache(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	defer clock.Set(mock)()

	runs := 0
	c := NewChecker()
	c.Register("count", func(ctx context.Context) Check {
		runs++
		return Check{Status: StatusHealthy}
	})

	c.Check(context.Background())
	c.Check(context.Background())
	assert.Equal(t, 1, runs)

	mock.Advance(6 * time.Second)
	c.Check(context.Background())
	assert.Equal(t, 2, runs)

	c.Register("other", func(ctx context.Context) Check { return Check{Status: StatusHealthy} })
	c.Check(context.Background())
	assert.Equal(t, 3, runs, "registering a check drops the cached report")
}

func TestHandlers(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addPort(t, sim, "eth0", true, true)
	c := NewDeviceChecker(ch, []string{"eth0"})

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 3)

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())

	rec = httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, "OK", rec.Body.String())

	unhealthy := NewChecker()
	unhealthy.Register("down", func(ctx context.Context) Check { return Check{Status: StatusUnhealthy} })

	rec = httptest.NewRecorder()
	unhealthy.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	unhealthy.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT READY", rec.Body.String())
}
