package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdshub/undcal-go/device"
	"github.com/pcdshub/undcal-go/pv/sim"
)

func TestPotNames(t *testing.T) {
	p := sim.NewProvider()
	pot := device.NewPot(p, 44, device.Downstream)

	assert.Equal(t, "Cell 44 DS", pot.ShortName())
	assert.Equal(t, "USEG:UNDS:4450:GapDes", pot.GapDes.Name())
	assert.Equal(t, "USEG:UNDS:4450:GapAct", pot.GapAct.Name())
	assert.Equal(t, "USEG:UNDS:4450:Go", pot.GapGo.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:VAct", pot.Voltage.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:PotVref", pot.VoltageRef.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:GapRef", pot.GapRef.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:PotSlope", pot.Slope.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:PotOffset", pot.Offset.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:CtrLnShift", pot.CenterLineShift.Name())
	assert.Len(t, pot.All(), 9)

	up := device.NewPot(p, 7, device.Upstream)
	assert.Equal(t, "USEG:UNDS:750:US:VAct", up.Voltage.Name())
}

func TestInterspaceNames(t *testing.T) {
	p := sim.NewProvider()
	is := device.NewInterspace(p, 43)

	assert.Equal(t, "Interspace 43", is.ShortName())
	assert.Equal(t, "MOVR:UNDS:4380:QXDES", is.XDes.Name())
	assert.Equal(t, "MOVR:UNDS:4380:QYDES", is.YDes.Name())
	assert.Equal(t, "MOVR:UNDS:4380:YRDBCKCALC", is.YReadback.Name())
	assert.Equal(t, "MOVR:UNDS:4380:QROLLDES", is.RollDes.Name())
	assert.Equal(t, "MOVR:UNDS:4380:QPITCHDES", is.PitchDes.Name())
	assert.Equal(t, "MOVR:UNDS:4380:QYAWDES", is.YawDes.Name())
	assert.Equal(t, "MOVR:UNDS:4380:TRIGGERCAL.PROC", is.Trigger.Name())
	assert.Equal(t, "MOVR:UNDS:4380:CAMSMOVING", is.Moving.Name())
}

func TestUndulatorNames(t *testing.T) {
	p := sim.NewProvider()
	u := device.NewUndulator(p, 44)

	assert.Equal(t, "SXU44", u.ShortName())
	assert.Equal(t, "USEG:UNDS:4450:US:CtrLnShift", u.USShift.Name())
	assert.Equal(t, "USEG:UNDS:4450:DS:CtrLnShift", u.DSShift.Name())
}

func TestConnectAllAndConnected(t *testing.T) {
	p := sim.NewProvider()
	u := device.NewUndulator(p, 44)
	assert.True(t, device.Connected(u))

	p.SetConnected(u.USShift.Name(), false)
	assert.False(t, device.Connected(u))

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.SetConnected(u.USShift.Name(), true)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, device.ConnectAll(ctx, u))
	assert.True(t, device.Connected(u))
}
