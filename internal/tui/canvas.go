package tui

import "strings"

// Braille patterns: 2x4 dots per cell, unicode offset 0x2800.
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type canvas struct {
	width, height int
	grid          [][]rune
}

func newCanvas(w, h int) *canvas {
	c := &canvas{width: w, height: h, grid: make([][]rune, h)}
	for i := range c.grid {
		c.grid[i] = make([]rune, w)
	}
	c.clear()
	return c
}

func (c *canvas) clear() {
	for i := range c.grid {
		for j := range c.grid[i] {
			c.grid[i][j] = 0x2800
		}
	}
}

// set marks a sub-pixel; the canvas is (width*2) x (height*4) sub-pixels.
func (c *canvas) set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.width || row >= c.height {
		return
	}
	c.grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *canvas) String() string {
	var b strings.Builder
	for _, row := range c.grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}
