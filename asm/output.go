// Copyright (C) 2019-2025 Algorand, Inc.
// This file is part of ruleasm
//
// ruleasm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// ruleasm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with ruleasm.  If not, see <https://www.gnu.org/licenses/>.

package asm

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/algorand/ruleasm/basics"
	"github.com/algorand/ruleasm/diagn"
)

// OutputEntry maps one emitted item back to its source, for annotated
// listings. OffsetBits is the global bit position in the image.
type OutputEntry struct {
	Span       diagn.Span
	Bank       ItemRef[Bankdef]
	Addr       basics.BigInt
	OffsetBits int
	SizeBits   int
}

// Output is the assembled image plus the metadata needed to render an
// annotated listing.
type Output struct {
	bits    *basics.BitVec
	Entries []OutputEntry
}

// checkBankOverlap verifies that no two banks with an output offset
// occupy intersecting byte ranges of the image. Banks without an output
// offset produce no bytes and are exempt, as are banks that emitted
// nothing.
func checkBankOverlap(report *diagn.Report, defs *ItemDefs) error {
	type span struct {
		bank       *Bankdef
		start, end uint64
	}
	var spans []span
	for _, b := range defs.Banks {
		if !b.HasOutput {
			continue
		}
		bits, err := bankUsedBits(defs, b)
		if err != nil {
			report.Errorf(b.Span, "%v", err)
			continue
		}
		if bits == 0 {
			continue
		}
		end, overflowed := basics.OAdd(b.OutputOffset, uint64(basics.DivCeil(bits, 8)))
		if overflowed {
			report.Errorf(b.Span, "bank `%s` extends past the addressable image", b.Name)
			continue
		}
		spans = append(spans, span{
			bank:  b,
			start: b.OutputOffset,
			end:   end,
		})
	}

	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				report.ErrorWithNotes(spans[i].bank.Span,
					fmt.Sprintf("banks `%s` and `%s` overlap in the output image",
						spans[i].bank.Name, spans[j].bank.Name),
					diagn.Note(spans[j].bank.Span, "overlapping bank declared here"))
			}
		}
	}
	return report.StopAtErrors()
}

// bankUsedBits returns the occupied bit length of a bank: the declared
// capacity for fill banks, otherwise the padded end of the last placed
// item.
func bankUsedBits(defs *ItemDefs, b *Bankdef) (int, error) {
	if b.Fill && b.HasSize {
		bits, overflowed := basics.OMul(b.SizeUnits, uint64(b.AddrUnit))
		if overflowed || bits > maxItemBits {
			return 0, fmt.Errorf("bank `%s` is too large to lay out", b.Name)
		}
		return int(bits), nil
	}
	used := 0
	for _, it := range b.items {
		pl, _, err := bankItemPlacement(defs, it)
		if err != nil {
			return 0, err
		}
		end := pl.OffsetBits + basics.DivCeil(pl.SizeBits, b.AddrUnit)*b.AddrUnit
		if end > used {
			used = end
		}
	}
	return used, nil
}

func bankItemPlacement(defs *ItemDefs, it bankItem) (*placement, diagn.Span, error) {
	var pl *placement
	var span diagn.Span
	switch it.kind {
	case bankItemInstruction:
		ins := defs.Instructions[it.index]
		pl, span = &ins.placement, ins.Span
	case bankItemData:
		elem := defs.DataElems[it.index]
		pl, span = &elem.placement, elem.Span
	case bankItemRes:
		res := defs.ResDirs[it.index]
		pl, span = &res.placement, res.Span
	}
	if !pl.OffsetKnown || !pl.SizeKnown {
		return nil, span, fmt.Errorf("item at %s was never placed", span)
	}
	return pl, span, nil
}

// buildOutput lays the resolved program out into one byte-addressable
// image. Within a bank, items sit at their resolved offsets; emitted
// values pack most significant unit first. Reservation gaps become
// zeros when they sit between emitted items; trailing gaps extend the
// image only for fill banks.
func buildOutput(report *diagn.Report, defs *ItemDefs) (*Output, error) {
	out := &Output{bits: basics.NewBitVec()}

	for bankIdx, b := range defs.Banks {
		if !b.HasOutput {
			continue
		}
		base := int(b.OutputOffset) * 8

		used, err := bankUsedBits(defs, b)
		if err != nil {
			report.Errorf(b.Span, "%v", err)
			continue
		}
		if b.HasSize {
			sizeBits := int(b.SizeUnits) * b.AddrUnit
			if used > sizeBits {
				report.Errorf(b.Span, "bank `%s` overflows its size: %d units used, %d available",
					b.Name, basics.DivCeil(used, b.AddrUnit), b.SizeUnits)
				continue
			}
		}

		for _, it := range b.items {
			pl, span, err := bankItemPlacement(defs, it)
			if err != nil {
				report.Errorf(span, "%v", err)
				continue
			}
			var value basics.BigInt
			emit := false
			switch it.kind {
			case bankItemInstruction:
				value = defs.Instructions[it.index].Resolution.Value
				emit = true
			case bankItemData:
				value = defs.DataElems[it.index].Value
				emit = true
			}
			if !emit {
				continue
			}
			if err := out.bits.WriteBigIntAt(base+pl.OffsetBits, value); err != nil {
				report.Errorf(span, "%v", err)
				continue
			}
			paddedEnd := pl.OffsetBits + basics.DivCeil(pl.SizeBits, b.AddrUnit)*b.AddrUnit
			out.bits.EnsureLen(base + paddedEnd)
			out.Entries = append(out.Entries, OutputEntry{
				Span:       span,
				Bank:       makeRef[Bankdef](bankIdx),
				Addr:       b.AddrStart.AddUint64(uint64(pl.OffsetBits / b.AddrUnit)),
				OffsetBits: base + pl.OffsetBits,
				SizeBits:   pl.SizeBits,
			})
		}

		if b.Fill {
			out.bits.EnsureLen(base + used)
		}
	}

	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].OffsetBits < out.Entries[j].OffsetBits
	})
	if err := report.StopAtErrors(); err != nil {
		return nil, err
	}
	return out, nil
}

// Bytes packs the image into bytes, most significant bit first.
func (o *Output) Bytes() []byte {
	return o.bits.Bytes()
}

// BitLen returns the image length in bits.
func (o *Output) BitLen() int {
	return o.bits.Len()
}

// FormatHexStr renders the image as one lowercase hex string.
func (o *Output) FormatHexStr() string {
	return hex.EncodeToString(o.Bytes())
}

// FormatAnnotated renders a human-readable listing mapping image
// offsets and bank addresses to emitted bytes and source lines. src may
// be nil to omit source excerpts.
func (o *Output) FormatAnnotated(src diagn.SourceProvider) string {
	var sb strings.Builder
	sb.WriteString(" offset | address | data\n")
	image := o.Bytes()

	for _, e := range o.Entries {
		startByte := e.OffsetBits / 8
		endByte := basics.DivCeil(e.OffsetBits+e.SizeBits, 8)
		if endByte > len(image) {
			endByte = len(image)
		}
		var hexParts []string
		for _, v := range image[startByte:endByte] {
			hexParts = append(hexParts, fmt.Sprintf("%02x", v))
		}
		data := strings.Join(hexParts, " ")

		excerpt := sourceExcerpt(src, e.Span)
		if excerpt != "" {
			sb.WriteString(fmt.Sprintf("%7x | %7s | %-23s ; %s\n",
				startByte, e.Addr.BigValue().Text(16), data, excerpt))
		} else {
			sb.WriteString(fmt.Sprintf("%7x | %7s | %s\n",
				startByte, e.Addr.BigValue().Text(16), data))
		}
	}
	return sb.String()
}

// sourceExcerpt returns the span's text collapsed to one line.
func sourceExcerpt(src diagn.SourceProvider, span diagn.Span) string {
	if src == nil || !span.HasLocation() {
		return ""
	}
	text, ok := src.SourceText(span.File)
	if !ok || span.Start >= len(text) {
		return ""
	}
	end := span.End
	if end > len(text) {
		end = len(text)
	}
	return strings.Join(strings.Fields(text[span.Start:end]), " ")
}
