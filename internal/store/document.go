// ABOUTME: Persisted dialogs document with its user and operator secondary indexes
// ABOUTME: Index maintenance is derived from record transitions so both stay consistent

package store

import (
	"encoding/json"
	"slices"
)

// Document is the persisted shape of the dialog store.
type Document struct {
	Dialogs               map[string]*Dialog  `json:"dialogs"`
	UserActiveDialogs     map[string]string   `json:"user_active_dialogs"`
	OperatorActiveDialogs map[string][]string `json:"operator_active_dialogs"`
}

// NewDocument returns an empty document with initialized maps.
func NewDocument() *Document {
	return &Document{
		Dialogs:               make(map[string]*Dialog),
		UserActiveDialogs:     make(map[string]string),
		OperatorActiveDialogs: make(map[string][]string),
	}
}

// decodeDocument parses a persisted document, filling nil maps.
func decodeDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Dialogs == nil {
		doc.Dialogs = make(map[string]*Dialog)
	}
	if doc.UserActiveDialogs == nil {
		doc.UserActiveDialogs = make(map[string]string)
	}
	if doc.OperatorActiveDialogs == nil {
		doc.OperatorActiveDialogs = make(map[string][]string)
	}
	for id, d := range doc.Dialogs {
		if d == nil {
			delete(doc.Dialogs, id)
			continue
		}
		if d.ID == "" {
			d.ID = id
		}
	}
	return doc, nil
}

func (doc *Document) encode() ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// insert stores a new dialog and registers it in the user index.
func (doc *Document) insert(d *Dialog) {
	doc.Dialogs[d.ID] = d
	if d.Status.IsOpen() {
		doc.UserActiveDialogs[d.UserID] = d.ID
	}
}

// replace swaps the stored record for next and reconciles both indexes
// against the transition from prev.
func (doc *Document) replace(prev, next *Dialog) {
	doc.Dialogs[next.ID] = next

	if !next.Status.IsOpen() {
		// Stale pointers to a newer dialog are left alone.
		if doc.UserActiveDialogs[next.UserID] == next.ID {
			delete(doc.UserActiveDialogs, next.UserID)
		}
	}

	if prev.OperatorID != "" && (prev.OperatorID != next.OperatorID || next.Status != StatusActive) {
		doc.removeOperatorDialog(prev.OperatorID, next.ID)
	}
	if next.Status == StatusActive && next.OperatorID != "" {
		doc.addOperatorDialog(next.OperatorID, next.ID)
	}
}

func (doc *Document) addOperatorDialog(operatorID, dialogID string) {
	ids := doc.OperatorActiveDialogs[operatorID]
	if slices.Contains(ids, dialogID) {
		return
	}
	doc.OperatorActiveDialogs[operatorID] = append(ids, dialogID)
}

func (doc *Document) removeOperatorDialog(operatorID, dialogID string) {
	ids := doc.OperatorActiveDialogs[operatorID]
	idx := slices.Index(ids, dialogID)
	if idx < 0 {
		return
	}
	ids = slices.Delete(slices.Clone(ids), idx, idx+1)
	if len(ids) == 0 {
		delete(doc.OperatorActiveDialogs, operatorID)
		return
	}
	doc.OperatorActiveDialogs[operatorID] = ids
}
