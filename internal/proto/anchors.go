package proto

import (
	"errors"
	"fmt"

	"serpentine.network/internal/board"
)

// Anchor is one point in the compact snake encoding: the first anchor is
// the absolute head position; every subsequent anchor is a relative,
// axis-aligned straight-run vector with exactly one non-zero component,
// normalised to the shortest-wrap ±1-unit-step form so the decoder steps
// in the correct direction around the torus (§4.2, §9).
type Anchor struct {
	DX, DY int
}

var errBadAnchor = errors.New("proto: anchor segment is not axis-aligned")

// EncodeAnchors turns a snake body (head-first) into its minimal anchor
// list: one anchor for the head, then one anchor per straight run.
func EncodeAnchors(body []board.Point, width, height int) []Anchor {
	if len(body) == 0 {
		return nil
	}

	anchors := make([]Anchor, 0, len(body))
	anchors = append(anchors, Anchor{DX: body[0].X, DY: body[0].Y})

	i := 1
	for i < len(body) {
		dx, dy := normalizedStep(body[i-1], body[i], width, height)
		runLen := 1
		for i+runLen < len(body) {
			ndx, ndy := normalizedStep(body[i+runLen-1], body[i+runLen], width, height)
			if ndx != dx || ndy != dy {
				break
			}
			runLen++
		}
		anchors = append(anchors, Anchor{DX: dx * runLen, DY: dy * runLen})
		i += runLen
	}

	return anchors
}

// normalizedStep returns the ±1 axis-aligned unit step from a to b on a
// width x height torus, choosing whichever direction (forward or wrapped)
// is a single unit step. a and b are assumed adjacent (differ by 1 mod
// width on one axis, or 1 mod height on the other).
func normalizedStep(a, b board.Point, width, height int) (int, int) {
	dx := wrapDelta(b.X-a.X, width)
	dy := wrapDelta(b.Y-a.Y, height)
	return dx, dy
}

// wrapDelta reduces d modulo m to the representative in (-m/2, m/2], which
// for the single-unit steps produced by Simulation.Step is always -1, 0 or
// 1 — the "shortest way around the torus" form §9 requires.
func wrapDelta(d, m int) int {
	if m == 0 {
		return d
	}
	d = ((d % m) + m) % m
	if d*2 > m {
		d -= m
	}
	return d
}

// DecodeAnchors reconstructs a snake body from its anchor list, stepping
// one unit at a time in each run's direction and wrapping modulo
// (width, height).
func DecodeAnchors(anchors []Anchor, width, height int) ([]board.Point, error) {
	if len(anchors) == 0 {
		return nil, nil
	}

	head := board.Point{X: anchors[0].DX, Y: anchors[0].DY}
	body := []board.Point{head}

	cur := head
	for _, a := range anchors[1:] {
		dx, dy := a.DX, a.DY
		if dx != 0 && dy != 0 {
			return nil, fmt.Errorf("%w: dx=%d dy=%d", errBadAnchor, dx, dy)
		}

		var steps, stepX, stepY int
		switch {
		case dx > 0:
			stepX, steps = 1, dx
		case dx < 0:
			stepX, steps = -1, -dx
		case dy > 0:
			stepY, steps = 1, dy
		case dy < 0:
			stepY, steps = -1, -dy
		}

		for s := 0; s < steps; s++ {
			nx := ((cur.X+stepX)%width + width) % width
			ny := ((cur.Y+stepY)%height + height) % height
			cur = board.Point{X: nx, Y: ny}
			body = append(body, cur)
		}
	}

	return body, nil
}
