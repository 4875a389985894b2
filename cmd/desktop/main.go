package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"stackcc/pkg/asm"
	"stackcc/pkg/cpu"
	"stackcc/pkg/grid"
	"stackcc/pkg/utils"
)

const (
	screenW    = 960
	screenH    = 640
	lineHeight = 15

	listingX  = 10
	listingY  = 30
	listingW  = 420
	panelX    = 450
	regCols   = 2
	regCellW  = 240
	stackRows = 24

	// stepsPerFrame is how many instructions run per frame while running freely.
	stepsPerFrame = 2000
)

var (
	face = text.NewGoXFace(basicfont.Face7x13)

	colText    = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
	colDim     = color.RGBA{0x80, 0x80, 0x80, 0xff}
	colLabel   = color.RGBA{0x5f, 0xd7, 0xff, 0xff}
	colCurrent = color.RGBA{0x30, 0x30, 0x60, 0xff}
	colError   = color.RGBA{0xff, 0x60, 0x60, 0xff}
	colDone    = color.RGBA{0x60, 0xff, 0x60, 0xff}
)

type Game struct {
	session *Session
	running bool
}

func (g *Game) Update() error {
	s := g.session
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.running = false
		s.Step()
	case inpututil.IsKeyJustPressed(ebiten.KeyLeft):
		g.running = false
		s.Back()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.running = !g.running
	case inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		g.running = false
		s.Reset()
	}

	if g.running {
		s.StepN(stepsPerFrame)
		if s.Done() {
			g.running = false
		}
	}
	return nil
}

func drawText(dst *ebiten.Image, msg string, x, y int, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(dst, msg, face, op)
}

// visibleWindow returns the first listing line to draw so that cur stays on
// screen.
func visibleWindow(cur, total, rows int) int {
	if total <= rows || cur < rows/2 {
		return 0
	}
	first := cur - rows/2
	if first > total-rows {
		first = total - rows
	}
	return first
}

func (g *Game) drawListing(screen *ebiten.Image) {
	s := g.session
	rows := (screenH - listingY - 20) / lineHeight
	cur := s.CurrentLine()
	first := visibleWindow(cur, len(s.Assembly), rows)

	for i := 0; i < rows && first+i < len(s.Assembly); i++ {
		n := first + i
		y := listingY + i*lineHeight
		if n == cur {
			r := image.Rect(listingX-4, y, listingX-4+listingW, y+lineHeight)
			screen.SubImage(r).(*ebiten.Image).Fill(colCurrent)
		}
		l := s.Assembly[n]
		clr := colText
		if len(l) > 0 && l[len(l)-1] == ':' {
			clr = colLabel
		}
		drawText(screen, fmt.Sprintf("%4d %s", n+1, l), listingX, y, clr)
	}
}

func (g *Game) drawRegisters(screen *ebiten.Image) {
	vm := g.session.VM
	drawText(screen, "Registers", panelX, listingY, colDim)
	for r := asm.Reg(0); r < asm.NumRegs; r++ {
		x, y := grid.CellOrigin(int(r), regCols, regCellW, lineHeight, panelX, listingY+lineHeight)
		drawText(screen, fmt.Sprintf("%-3s %d", r, vm.Regs[r]), x, y, colText)
	}

	flagsY := listingY + (int(asm.NumRegs)/regCols+1)*lineHeight
	drawText(screen, fmt.Sprintf("ZF=%t SF=%t OF=%t  pc=%d  steps=%d", vm.Z, vm.S, vm.O, vm.PC, vm.Steps), panelX, flagsY, colText)
}

func (g *Game) drawStack(screen *ebiten.Image) {
	vm := g.session.VM
	top := listingY + (int(asm.NumRegs)/regCols+3)*lineHeight
	drawText(screen, "Stack (rsp first)", panelX, top, colDim)

	rsp := vm.Regs[asm.RSP]
	rbp := vm.Regs[asm.RBP]
	for i, v := range vm.StackWords(stackRows) {
		addr := rsp + int64(i*8)
		_, y := grid.CellOrigin(i, 1, 0, lineHeight, panelX, top+lineHeight)
		marker := "   "
		if addr == rbp && rbp != 0 {
			marker = "rbp"
		}
		word := fmt.Sprintf("%d", v)
		if v == cpu.HaltAddress && addr == int64(len(vm.Memory))-8 {
			word = "<halt>"
		}
		drawText(screen, fmt.Sprintf("%s %#06x  %s", marker, addr, word), panelX, y, colText)
	}
}

func (g *Game) drawStatus(screen *ebiten.Image) {
	s := g.session
	y := screenH - 2*lineHeight
	switch {
	case s.Err() != nil:
		drawText(screen, "fault: "+s.Err().Error(), panelX, y, colError)
	case s.VM.Halted:
		drawText(screen, fmt.Sprintf("halted, result = %d", s.VM.Result()), panelX, y, colDone)
	case g.running:
		drawText(screen, "running...", panelX, y, colText)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Space: step  Left: back  R: run/pause  Backspace: reset", listingX, 6)
	g.drawListing(screen)
	g.drawRegisters(screen)
	g.drawStack(screen)
	g.drawStatus(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH
}

func main() {
	steps := flag.Int("steps", cpu.DefaultStepLimit, "emulator step limit")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-steps N] <source.c>")
		os.Exit(2)
	}

	src, err := utils.ReadSource(flag.Arg(0), os.Stdin)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	session, err := NewSession(src, *steps)
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle("stackcc stepper")

	if err := ebiten.RunGame(&Game{session: session}); err != nil {
		log.Fatal(err)
	}
}
