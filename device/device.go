// Package device groups the process variables of each physical unit: one
// potentiometer side of an undulator segment, an interspace actuator, and
// the undulator's centerline-shift sensors. Names follow the control
// system's cell-scoped convention and are treated as opaque keys past this
// point.
package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pcdshub/undcal-go/pv"
)

// Role distinguishes the upstream and downstream potentiometer of a cell.
type Role string

const (
	Upstream   Role = "US"
	Downstream Role = "DS"
)

// GapPrefix is the record prefix of a cell's undulator segment.
func GapPrefix(cell int) string {
	return fmt.Sprintf("USEG:UNDS:%d50:", cell)
}

// InterspacePrefix is the record prefix of a cell's interspace mover.
func InterspacePrefix(cell int) string {
	return fmt.Sprintf("MOVR:UNDS:%d80:", cell)
}

// Pot bundles the signals needed to calibrate one potentiometer side.
type Pot struct {
	Cell int
	Role Role

	GapDes *pv.PV
	GapAct *pv.PV
	GapGo  *pv.PV

	Voltage         *pv.PV
	VoltageRef      *pv.PV
	GapRef          *pv.PV
	Slope           *pv.PV
	Offset          *pv.PV
	CenterLineShift *pv.PV
}

func NewPot(provider pv.Provider, cell int, role Role) *Pot {
	gap := GapPrefix(cell)
	side := gap + string(role) + ":"
	mk := func(name string) *pv.PV { return pv.New(provider.Conn(name)) }
	return &Pot{
		Cell:            cell,
		Role:            role,
		GapDes:          mk(gap + "GapDes"),
		GapAct:          mk(gap + "GapAct"),
		GapGo:           mk(gap + "Go"),
		Voltage:         mk(side + "VAct"),
		VoltageRef:      mk(side + "PotVref"),
		GapRef:          mk(side + "GapRef"),
		Slope:           mk(side + "PotSlope"),
		Offset:          mk(side + "PotOffset"),
		CenterLineShift: mk(side + "CtrLnShift"),
	}
}

func (p *Pot) ShortName() string {
	return fmt.Sprintf("Cell %d %s", p.Cell, p.Role)
}

func (p *Pot) All() []*pv.PV {
	return []*pv.PV{
		p.GapDes, p.GapAct, p.GapGo,
		p.Voltage, p.VoltageRef, p.GapRef,
		p.Slope, p.Offset, p.CenterLineShift,
	}
}

// Interspace bundles one interspace actuator's command and readback
// signals.
type Interspace struct {
	Cell int

	XDes      *pv.PV
	YDes      *pv.PV
	YReadback *pv.PV
	RollDes   *pv.PV
	PitchDes  *pv.PV
	YawDes    *pv.PV

	Trigger *pv.PV
	Moving  *pv.PV
}

func NewInterspace(provider pv.Provider, cell int) *Interspace {
	prefix := InterspacePrefix(cell)
	mk := func(name string) *pv.PV { return pv.New(provider.Conn(name)) }
	return &Interspace{
		Cell:      cell,
		XDes:      mk(prefix + "QXDES"),
		YDes:      mk(prefix + "QYDES"),
		YReadback: mk(prefix + "YRDBCKCALC"),
		RollDes:   mk(prefix + "QROLLDES"),
		PitchDes:  mk(prefix + "QPITCHDES"),
		YawDes:    mk(prefix + "QYAWDES"),
		Trigger:   mk(prefix + "TRIGGERCAL.PROC"),
		Moving:    mk(prefix + "CAMSMOVING"),
	}
}

func (i *Interspace) ShortName() string {
	return fmt.Sprintf("Interspace %d", i.Cell)
}

func (i *Interspace) All() []*pv.PV {
	return []*pv.PV{
		i.XDes, i.YDes, i.YReadback,
		i.RollDes, i.PitchDes, i.YawDes,
		i.Trigger, i.Moving,
	}
}

// Undulator exposes the centerline-shift sensors of one cell.
type Undulator struct {
	Cell int

	USShift *pv.PV
	DSShift *pv.PV
}

func NewUndulator(provider pv.Provider, cell int) *Undulator {
	prefix := GapPrefix(cell)
	return &Undulator{
		Cell:    cell,
		USShift: pv.New(provider.Conn(prefix + "US:CtrLnShift")),
		DSShift: pv.New(provider.Conn(prefix + "DS:CtrLnShift")),
	}
}

func (u *Undulator) ShortName() string {
	return fmt.Sprintf("SXU%d", u.Cell)
}

func (u *Undulator) All() []*pv.PV {
	return []*pv.PV{u.USShift, u.DSShift}
}

// Unit is any PV bundle that can be connected and reported as a whole.
type Unit interface {
	ShortName() string
	All() []*pv.PV
}

// ConnectAll blocks until every PV of the unit is connected.
func ConnectAll(ctx context.Context, u Unit) error {
	for _, p := range u.All() {
		if err := p.Connect(ctx); err != nil {
			return fmt.Errorf("%s: %w", u.ShortName(), err)
		}
	}
	return nil
}

// Connected reports whether every PV of the unit is connected.
func Connected(u Unit) bool {
	for _, p := range u.All() {
		if !p.Connected() {
			return false
		}
	}
	return true
}

// Report logs the connection state of every PV in the unit.
func Report(log *zap.SugaredLogger, u Unit) {
	log.Infof("-- %s --", u.ShortName())
	for _, p := range u.All() {
		state := "connected"
		if !p.Connected() {
			state = "disconnected"
		}
		log.Infof("%s\t%s", p.Name(), state)
	}
}
