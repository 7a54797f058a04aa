package collab

import (
	"encoding/json"
)

// Block kinds with structural meaning. Any other kind is carried opaquely.
const (
	KindText      = "text"
	KindImage     = "image"
	KindButton    = "button"
	KindVideo     = "video"
	KindContainer = "container"
	KindGrid      = "grid"
)

// Block is one node of the page content tree. Only the discriminator and
// the structural children are typed; every other field round-trips through
// Extra untouched, so blocks with fields the server does not understand
// survive a mutate-and-rebroadcast cycle.
type Block struct {
	ID       string
	Kind     string
	Children []*Block // container children; nil when the key is absent
	Cells    []*Cell  // grid cells; nil when the key is absent
	Extra    map[string]json.RawMessage
}

// Cell is one slot of a grid block, holding an optional nested block.
type Cell struct {
	Block *Block
	Extra map[string]json.RawMessage
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Extra = make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		b.setField(key, value)
	}
	return nil
}

// setField routes one field to its typed slot, falling back to Extra when
// the value does not have the expected shape.
func (b *Block) setField(key string, value json.RawMessage) {
	switch key {
	case "id":
		var s string
		if json.Unmarshal(value, &s) == nil {
			b.ID = s
			return
		}
	case "type":
		var s string
		if json.Unmarshal(value, &s) == nil {
			b.Kind = s
			return
		}
	case "children":
		var children []*Block
		if json.Unmarshal(value, &children) == nil && children != nil {
			b.Children = children
			return
		}
	case "cells":
		var cells []*Cell
		if json.Unmarshal(value, &cells) == nil && cells != nil {
			b.Cells = cells
			return
		}
	}
	b.Extra[key] = value
}

func (b *Block) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(b.Extra)+4)
	for key, value := range b.Extra {
		out[key] = value
	}
	out["id"] = b.ID
	out["type"] = b.Kind
	if b.Children != nil {
		out["children"] = b.Children
	}
	if b.Cells != nil {
		out["cells"] = b.Cells
	}
	return json.Marshal(out)
}

// Merge applies a field patch to the block, last writer wins per field.
func (b *Block) Merge(data map[string]json.RawMessage) {
	if b.Extra == nil {
		b.Extra = make(map[string]json.RawMessage, len(data))
	}
	for key, value := range data {
		b.setField(key, value)
	}
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Extra = make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		if key == "block" {
			var block *Block
			if json.Unmarshal(value, &block) == nil {
				c.Block = block
				continue
			}
		}
		c.Extra[key] = value
	}
	return nil
}

func (c *Cell) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Extra)+1)
	for key, value := range c.Extra {
		out[key] = value
	}
	out["block"] = c.Block
	return json.Marshal(out)
}

// Document is the shared page state of a room. The fields the mutation
// operators interpret are typed; everything else passes through Extra. A
// payload that is valid JSON but not an object is held verbatim in raw and
// treated as opaque non-empty state.
type Document struct {
	Blocks []*Block // nil when the "blocks" key is absent
	Theme  map[string]json.RawMessage
	Header map[string]json.RawMessage
	Footer map[string]json.RawMessage
	Extra  map[string]json.RawMessage

	raw json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Document{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not an object: keep the payload verbatim as opaque state.
		d.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	d.Extra = make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		switch key {
		case "blocks":
			var blocks []*Block
			if json.Unmarshal(value, &blocks) == nil && blocks != nil {
				d.Blocks = blocks
				continue
			}
		case "theme":
			var m map[string]json.RawMessage
			if json.Unmarshal(value, &m) == nil && m != nil {
				d.Theme = m
				continue
			}
		case "header":
			var m map[string]json.RawMessage
			if json.Unmarshal(value, &m) == nil && m != nil {
				d.Header = m
				continue
			}
		case "footer":
			var m map[string]json.RawMessage
			if json.Unmarshal(value, &m) == nil && m != nil {
				d.Footer = m
				continue
			}
		}
		d.Extra[key] = value
	}
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	if d.raw != nil {
		return d.raw, nil
	}
	out := make(map[string]interface{}, len(d.Extra)+4)
	for key, value := range d.Extra {
		out[key] = value
	}
	if d.Blocks != nil {
		out["blocks"] = d.Blocks
	}
	if d.Theme != nil {
		out["theme"] = d.Theme
	}
	if d.Header != nil {
		out["header"] = d.Header
	}
	if d.Footer != nil {
		out["footer"] = d.Footer
	}
	return json.Marshal(out)
}

// IsEmpty reports whether the document carries no state at all. Joiners
// only receive an initial sync_state for non-empty documents.
func (d *Document) IsEmpty() bool {
	return d.raw == nil &&
		d.Blocks == nil &&
		d.Theme == nil && d.Header == nil && d.Footer == nil &&
		len(d.Extra) == 0
}

// UpdateBlock finds the block with the given id anywhere in the tree and
// merges the patch into it. First match wins; duplicates further along the
// walk are left untouched. Returns false when no block matched or the
// document has no blocks.
func (d *Document) UpdateBlock(id string, patch map[string]json.RawMessage) bool {
	if d.Blocks == nil {
		return false
	}
	return updateIn(d.Blocks, id, patch)
}

func updateIn(blocks []*Block, id string, patch map[string]json.RawMessage) bool {
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if b.ID == id {
			b.Merge(patch)
			return true
		}
		if b.Kind == KindContainer && b.Children != nil {
			if updateIn(b.Children, id, patch) {
				return true
			}
		}
		if b.Kind == KindGrid {
			for _, cell := range b.Cells {
				if cell == nil || cell.Block == nil {
					continue
				}
				if updateIn([]*Block{cell.Block}, id, patch) {
					return true
				}
			}
		}
	}
	return false
}

// AddBlock appends a block to the top-level sequence, creating it when
// absent. A payload that does not parse as a block object is dropped.
func (d *Document) AddBlock(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var block Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return false
	}
	if d.Blocks == nil {
		d.Blocks = []*Block{}
	}
	d.Blocks = append(d.Blocks, &block)
	return true
}

// DeleteBlock removes the first block matching id anywhere in the tree.
// A match inside a grid cell nulls the cell's block reference instead of
// removing the cell.
//
// A grid cell's block has its children walked regardless of its kind,
// while a grid nested inside a cell does not have its own cells walked.
// That asymmetry mirrors the editor's established behavior and is pinned
// by tests.
func (d *Document) DeleteBlock(id string) bool {
	if d.Blocks == nil {
		return false
	}
	return deleteIn(&d.Blocks, id)
}

func deleteIn(blocks *[]*Block, id string) bool {
	for i, b := range *blocks {
		if b == nil {
			continue
		}
		if b.ID == id {
			*blocks = append((*blocks)[:i], (*blocks)[i+1:]...)
			return true
		}
		if b.Kind == KindContainer && b.Children != nil {
			if deleteIn(&b.Children, id) {
				return true
			}
		}
		if b.Kind == KindGrid {
			for _, cell := range b.Cells {
				if cell == nil || cell.Block == nil {
					continue
				}
				if cell.Block.ID == id {
					cell.Block = nil
					return true
				}
				if cell.Block.Children != nil && deleteIn(&cell.Block.Children, id) {
					return true
				}
			}
		}
	}
	return false
}

// MoveBlock reorders the top-level sequence, removing the element at from
// and reinserting it at to. Out-of-range indices make it a no-op.
func (d *Document) MoveBlock(from, to int) bool {
	if d.Blocks == nil {
		return false
	}
	n := len(d.Blocks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	moved := d.Blocks[from]
	d.Blocks = append(d.Blocks[:from], d.Blocks[from+1:]...)
	d.Blocks = append(d.Blocks[:to], append([]*Block{moved}, d.Blocks[to:]...)...)
	return true
}

// MergeTheme shallow-merges the patch into the theme, creating it when
// absent. MergeHeader and MergeFooter behave the same for their keys.
func (d *Document) MergeTheme(patch map[string]json.RawMessage) {
	d.Theme = mergeSection(d.Theme, patch)
}

func (d *Document) MergeHeader(patch map[string]json.RawMessage) {
	d.Header = mergeSection(d.Header, patch)
}

func (d *Document) MergeFooter(patch map[string]json.RawMessage) {
	d.Footer = mergeSection(d.Footer, patch)
}

func mergeSection(section, patch map[string]json.RawMessage) map[string]json.RawMessage {
	if section == nil {
		section = make(map[string]json.RawMessage, len(patch))
	}
	for key, value := range patch {
		section[key] = value
	}
	return section
}
