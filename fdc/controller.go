// Package fdc implements the NEC uPD765-compatible floppy disk controller
// state machine: the command/execution/result protocol, DMA windows into
// the emulated host memory, and the bridge between host bus events and the
// IMD image engine.
//
// Grounded on usbarmory-tamago's imx6/usdhc/cmd.go (register read-modify-
// write, errors.New/fmt.Errorf error style, a rsp(i) result accessor) and
// imx6/usdhc/init.go's reg.WaitFor poll/retry idiom, adapted from a real
// SD host controller's command protocol to the uPD765's. The source
// firmware's function-pointer dispatch table is replaced with a Go
// map[byte]*commandDef.
package fdc

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kim1fw/memcard/bus"
	"github.com/kim1fw/memcard/cell"
	"github.com/kim1fw/memcard/dma"
	"github.com/kim1fw/memcard/imd"
)

// State is one of the four uPD765 controller phases.
type State int

const (
	StateIdle State = iota
	StateCommand
	StateExecution
	StateStatus
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommand:
		return "command"
	case StateExecution:
		return "execution"
	case StateStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Interrupt is the pending-interrupt tag.
type Interrupt int

const (
	IntNone Interrupt = iota
	IntSeek
	IntCommand
	IntAttention
	IntInvalid
)

// MSR (main status register) bits.
const (
	msrRQM = 0x80 // ready for a byte
	msrDIO = 0x40 // direction, 1 = controller->host
	msrBSY = 0x10 // command in progress
)

// HSR (hardware status/control register) bits.
const (
	hsrIRQREQ = 0x80 // read, active-low pending flag (0 = interrupt pending)
	hsrOPTSW  = 0x40 // read, option switch
	hsrDMADIR = 0x01 // write, 0 = host->controller, 1 = controller->host
	hsrWPOVR  = 0x02 // write, write-protect override
	hsrIRQEN  = 0x04 // write, IRQ enable
)

// Registers names the four cell-store addresses the controller's registers
// are aliased onto.
type Registers struct {
	HSR, DAR, MSR, UDR uint16
}

// Drive is one of up to four floppy drive slots. It tracks physical head
// position independently of whatever image, if any, is mounted on it —
// matching a real drive, which remembers where its heads last parked.
type Drive struct {
	Cyl byte
}

// NumDrives is the number of drive slots a controller instance serves.
const NumDrives = 4

// Controller is the uPD765 command/execution/result protocol machine
// bridging host DMA windows to the IMD image engine.
type Controller struct {
	mu sync.Mutex

	state  State
	cmd    [9]byte
	cmdLen int
	want   int

	res    [7]byte
	resLen int
	resPos int

	cur *commandDef

	pending  Interrupt
	lastSeek [2]byte // ST0, present cylinder

	drives   [NumDrives]Drive
	curDrive int

	Manager *imd.Manager

	SysWindow  dma.Window
	UserWindow dma.Window

	store *cell.Store
	regs  Registers
	busEm *bus.Emulator

	hsrCtl byte // host-written low six bits (DMADIR, WPOVR, IRQEN among them)
	optSw  bool

	hsrCh, darCh, msrCh, udrCh <-chan bus.AliasEvent

	// CtlSem is the controller mutex: a timed-acquire primitive
	// (weight-1 golang.org/x/sync semaphore) the HTTP
	// control surface acquires before any call that mutates mounted-drive
	// state or overlapping memory attributes, so an in-flight controller
	// command sees a consistent view.
	CtlSem *semaphore.Weighted

	Logger *log.Logger
}

// NewController wires a Controller against store's four aliased registers
// via busEm, serving drives out of mgr, with the given SYSTEM/USER DMA
// window bases.
func NewController(store *cell.Store, busEm *bus.Emulator, mgr *imd.Manager, regs Registers, sysBase, userBase uint16, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Manager:    mgr,
		SysWindow:  dma.NewWindow(sysBase),
		UserWindow: dma.NewWindow(userBase),
		store:      store,
		regs:       regs,
		busEm:      busEm,
		CtlSem:     semaphore.NewWeighted(1),
		Logger:     logger,
	}

	c.hsrCh = busEm.RegisterAlias(regs.HSR, "HSR")
	c.darCh = busEm.RegisterAlias(regs.DAR, "DAR")
	c.msrCh = busEm.RegisterAlias(regs.MSR, "MSR")
	c.udrCh = busEm.RegisterAlias(regs.UDR, "UDR")

	c.writeMSR()
	c.writeHSR()

	return c
}

// Run consumes bus alias events until ctx is cancelled, driving the
// command/execution/result protocol machine. It is the sole writer of the
// upper two HSR bits, the command and result buffers, and the state
// variable.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := c.busEm.AcquireEvent(ctx); err != nil {
			return err
		}
		c.drain()
	}
}

// drain services whichever of the four aliased registers has a pending
// event, without blocking on any that doesn't.
func (c *Controller) drain() {
	select {
	case ev := <-c.udrCh:
		c.onUDR(ev)
	default:
	}
	select {
	case ev := <-c.hsrCh:
		c.onHSR(ev)
	default:
	}
	select {
	case ev := <-c.darCh:
		c.onDAR(ev)
	default:
	}
	select {
	case <-c.msrCh:
		// Host never legitimately writes MSR; nothing to react to.
	default:
	}
}

func (c *Controller) onHSR(ev bus.AliasEvent) {
	if ev.Dir != bus.DirWrite {
		return
	}
	c.mu.Lock()
	c.hsrCtl = ev.Value & 0x3F
	c.mu.Unlock()
	c.writeHSR()
}

func (c *Controller) onDAR(ev bus.AliasEvent) {
	// DAR is read freely at command-execution time (see dmaBounds); no
	// state needs to track its last-written value beyond the cell store
	// itself, which already holds it.
}

func (c *Controller) onUDR(ev bus.AliasEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Dir == bus.DirWrite {
		c.onUDRWrite(ev.Value)
		return
	}

	if c.state == StateStatus {
		c.resPos++
		if c.resPos >= c.resLen {
			c.toIdle()
		} else {
			c.pushResult()
		}
		c.writeMSR()
	}
}

func (c *Controller) onUDRWrite(data byte) {
	switch c.state {
	case StateIdle:
		c.startCommand(data)
	case StateCommand:
		c.cmd[c.cmdLen] = data
		c.cmdLen++
		if c.cmdLen >= c.want {
			c.runCommand()
		}
	default:
		c.Logger.Printf("fdc: spurious UDR write %#x in state %s", data, c.state)
	}
}

func (c *Controller) startCommand(opcode byte) {
	def, ok := commandTable[opcode&0x1F]
	if !ok {
		def = &invalidCommand
	}

	c.cur = def
	c.cmd[0] = opcode
	c.cmdLen = 1
	c.want = def.cmdLen

	if c.cmdLen >= c.want {
		c.runCommand()
		return
	}

	c.state = StateCommand
	c.writeMSR()
}

func (c *Controller) runCommand() {
	c.state = StateExecution
	c.writeMSR()

	c.res = [7]byte{}
	c.resLen = c.cur.resLen
	c.resPos = 0

	// Hold the same mutex the HTTP control surface acquires before
	// touching mounted-drive state or overlapping memory attributes, so
	// this command's view of mounted drives stays consistent for its
	// whole execution.
	_ = c.CtlSem.Acquire(context.Background(), 1)
	c.cur.run(c)
	c.CtlSem.Release(1)

	if c.resLen > 0 {
		c.state = StateStatus
		c.pushResult()
	} else {
		c.toIdle()
	}

	c.writeMSR()
}

// pushResult writes the next undelivered result byte into the UDR cell so
// the host's next read observes it.
func (c *Controller) pushResult() {
	if c.resPos >= c.resLen {
		return
	}
	c.busEm.Cycle(c.regs.UDR, true, c.res[c.resPos])
}

func (c *Controller) toIdle() {
	c.state = StateIdle
	c.cmdLen = 0
	c.want = 0
	c.cur = nil
}

// writeMSR recomputes and publishes the main status register.
func (c *Controller) writeMSR() {
	var v byte

	switch c.state {
	case StateIdle:
		v = msrRQM
	case StateCommand:
		v = msrRQM
	case StateExecution:
		v = msrBSY
	case StateStatus:
		v = msrRQM | msrDIO | msrBSY
	}

	c.busEm.Cycle(c.regs.MSR, true, v)
}

// writeHSR recomputes and publishes the hardware status register's
// read-only top bits (IRQREQ, option switch) over whatever the host most
// recently wrote to the low six.
func (c *Controller) writeHSR() {
	top := byte(0)
	if c.pending == IntNone {
		top |= hsrIRQREQ
	}
	if c.optSw {
		top |= hsrOPTSW
	}
	c.busEm.WriteHSR(c.regs.HSR, c.hsrCtl, top)
}

func (c *Controller) raiseInterrupt(kind Interrupt) {
	c.pending = kind
	c.writeHSR()
}

func (c *Controller) clearInterrupt() {
	c.pending = IntNone
	c.writeHSR()
}

// Snapshot is a point-in-time view of controller state for diagnostics
// (httpapi's GET /sd/mnt/status).
type Snapshot struct {
	State    State
	Drive    int
	Cylinder byte
	Busy     bool
}

// Status returns a Snapshot of the controller's current state, acquiring
// the same mutex Run uses so the read is consistent.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:    c.state,
		Drive:    c.curDrive,
		Cylinder: c.drives[c.curDrive].Cyl,
		Busy:     c.state == StateExecution,
	}
}

// Lock acquires the controller mutex with a bounded timeout, for the HTTP
// control surface to hold across a request rather than block forever.
func (c *Controller) Lock(ctx context.Context, timeout time.Duration) error {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.CtlSem.Acquire(lctx, 1)
}

// Unlock releases the controller mutex acquired by Lock.
func (c *Controller) Unlock() {
	c.CtlSem.Release(1)
}
