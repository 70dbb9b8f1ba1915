/* Copyright (C) 2016 Philipp Benner
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package big

import "testing"

func TestVariableStepBlockRoundTrip(t *testing.T) {
	order := LittleEndian()
	positions := []uint32{10, 20, 40}
	values := []float32{1.5, 2.5, 3.5}
	block, err := EncodeVariableStepBlock(0, 10, 45, 5, positions, values, order)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	points, err := DecodeWigBlock(block, order, 0, 0, 100, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	if points[1].Start != 20 || points[1].End != 25 || points[1].Value != 2.5 {
		t.Fatalf("unexpected point: %+v", points[1])
	}
}

func TestFixedStepBlockGridRealignment(t *testing.T) {
	order := LittleEndian()
	values := []float32{1, 2, 3, 4, 5}
	block, err := EncodeFixedStepBlock(0, 0, 10, 10, values, order)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	points, err := DecodeWigBlock(block, order, 0, 25, 1000, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, p := range points {
		if p.Start < 25 {
			t.Fatalf("point %+v precedes query start 25", p)
		}
		if (p.Start-0)%10 != 0 {
			t.Fatalf("point %+v not on the step-10 grid", p)
		}
	}
	if len(points) != 2 { // positions 30 and 40 qualify
		t.Fatalf("got %d points, want 2", len(points))
	}
}

func TestFixedStepSectionEqualsComparesOtherStart(t *testing.T) {
	a := FixedStepSection{ChromIx: 0, Start: 10, Step: 5, Span: 5, Values: []float32{1, 2}}
	b := FixedStepSection{ChromIx: 0, Start: 20, Step: 5, Span: 5, Values: []float32{1, 2}}
	if a.equals(b) {
		t.Fatal("sections with different start should not be equal")
	}
	c := a
	if !a.equals(c) {
		t.Fatal("identical sections should be equal")
	}
}

func TestEncodeBedGraphBlockUnsupported(t *testing.T) {
	_, err := EncodeBedGraphBlock(0, nil, LittleEndian())
	if !IsKind(err, UnsupportedSection) {
		t.Fatalf("expected UnsupportedSection, got %v", err)
	}
}
