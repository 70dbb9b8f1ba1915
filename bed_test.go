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

import (
	"reflect"
	"testing"
)

func TestBedBlockRoundTrip(t *testing.T) {
	order := LittleEndian()
	entries := []decodedBedEntry{
		{ChromIx: 0, Start: 10, End: 20, Rest: "geneA\t0\t+"},
		{ChromIx: 0, Start: 15, End: 25, Rest: "geneB\t0\t-"},
		{ChromIx: 0, Start: 100, End: 200, Rest: ""},
	}
	block, err := EncodeBedBlock(entries, order)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeBedBlock(block, order, 0, 0, 1000, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, entries)
	}
}

func TestBedBlockContainmentVsOverlap(t *testing.T) {
	order := LittleEndian()
	entries := []decodedBedEntry{
		{ChromIx: 0, Start: 5, End: 50, Rest: ""},
	}
	block, _ := EncodeBedBlock(entries, order)

	contained, _ := DecodeBedBlock(block, order, 0, 10, 40, false)
	if len(contained) != 0 {
		t.Fatalf("containment query should exclude partially-overlapping entry, got %d", len(contained))
	}
	overlapping, _ := DecodeBedBlock(block, order, 0, 10, 40, true)
	if len(overlapping) != 1 {
		t.Fatalf("overlap query should include entry, got %d", len(overlapping))
	}
}

func TestBedBlockFiltersOtherChromosomes(t *testing.T) {
	order := LittleEndian()
	entries := []decodedBedEntry{
		{ChromIx: 0, Start: 0, End: 10, Rest: ""},
		{ChromIx: 1, Start: 0, End: 10, Rest: ""},
	}
	block, _ := EncodeBedBlock(entries, order)

	got, err := DecodeBedBlock(block, order, 1, 0, 10, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ChromIx != 1 {
		t.Fatalf("expected only chromIx 1 entry, got %+v", got)
	}
}

func TestExtendedBedFieldsRoundTrip(t *testing.T) {
	f := ExtendedBedFields{
		Name:        "geneA",
		Score:       42,
		Strand:      '+',
		ThickStart:  10,
		ThickEnd:    90,
		ItemRgb:     "255,0,0",
		BlockCount:  2,
		BlockSizes:  []int{10, 20},
		BlockStarts: []int{0, 50},
	}
	rest := FormatExtendedBedFields(f)
	got, err := ParseExtendedBedFields(rest)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, f)
	}
}
